package segment

import (
	"context"
	"testing"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/componenttree"
	"github.com/janelia-flyem/catvol/storage"
	_ "github.com/janelia-flyem/catvol/storage/badger"
)

const (
	testProject  = 1
	testStack    = 2
	testSkeleton = 77
)

func newTestService(t *testing.T) (*Service, *MemStore) {
	kv, err := storage.Open(storage.Config{Engine: "badger", InMemory: true})
	if err != nil {
		t.Fatalf("Couldn't open in-memory store: %v\n", err)
	}
	t.Cleanup(func() {
		componenttree.ForgetStore(kv)
		kv.Close()
	})
	db := NewMemStore()
	db.AddStack(catvol.Stack{
		ID:         testStack,
		ProjectID:  testProject,
		Dimension:  catvol.Dims3d{X: 100, Y: 100, Z: 5},
		Resolution: catvol.Resolution{X: 4, Y: 4, Z: 50},
	})
	db.AddSkeleton(testProject, testSkeleton,
		catvol.Point3d{X: 60, Y: 60, Z: 0},    // pixel (15,15) z 0
		catvol.Point3d{X: 62, Y: 61, Z: 10},   // same pixel, same section
		catvol.Point3d{X: 400, Y: 400, Z: 50}, // nothing on z 1 there
		catvol.Point3d{X: 8, Y: 8, Z: 200},    // no tree section 4
	)

	tree := componenttree.New(kv, testProject, testStack)
	center := catvol.Pixel{X: 15, Y: 15}
	err = tree.ImportSection(0, []componenttree.Component{
		{Threshold: 0.8, Pixels: []catvol.Pixel{{X: 10, Y: 10}, center, {X: 20, Y: 20}}},
		{Threshold: 0.5, Pixels: []catvol.Pixel{{X: 12, Y: 11}, center, {X: 18, Y: 19}}},
	})
	if err != nil {
		t.Fatalf("Couldn't import section 0: %v\n", err)
	}
	err = tree.ImportSection(1, []componenttree.Component{
		{Threshold: 0.1, Pixels: []catvol.Pixel{{X: 1, Y: 1}}},
	})
	if err != nil {
		t.Fatalf("Couldn't import section 1: %v\n", err)
	}
	return NewService(db, db, kv), db
}

func TestPutComponents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	scope := Scope{ProjectID: testProject, StackID: testStack, SkeletonID: testSkeleton, Z: 0}

	// client-sent boxes are replaced by the ones from the pixels
	sel := []Selection{{ID: 1, MinX: 0, MinY: 0, MaxX: 99, MaxY: 99, Threshold: 0.5}}
	inserted, removed, err := svc.PutComponents(ctx, scope, 3, sel)
	if err != nil {
		t.Fatalf("Couldn't put components: %v\n", err)
	}
	if inserted != 1 || removed != 0 {
		t.Errorf("Expected 1 insert 0 removals, got %d and %d\n", inserted, removed)
	}
	saved, err := svc.SavedComponents(ctx, scope)
	if err != nil {
		t.Fatalf("Couldn't get saved components: %v\n", err)
	}
	c, found := saved[1]
	if !found {
		t.Fatalf("Component 1 not saved: %v\n", saved)
	}
	if c.Bounds() != (catvol.Rect{MinX: 12, MinY: 11, MaxX: 18, MaxY: 19}) || c.Status != StatusSelected || c.UserID != 3 {
		t.Errorf("Bad saved component: %+v\n", c)
	}
	rowID := c.ID

	// keep 1, add 0
	sel = append(sel, Selection{ID: 0, Threshold: 0.8}, Selection{ID: 0, Threshold: 0.8})
	inserted, removed, err = svc.PutComponents(ctx, scope, 3, sel)
	if err != nil {
		t.Fatalf("Couldn't put components: %v\n", err)
	}
	if inserted != 1 || removed != 0 {
		t.Errorf("Expected 1 insert 0 removals, got %d and %d\n", inserted, removed)
	}
	saved, _ = svc.SavedComponents(ctx, scope)
	if len(saved) != 2 || saved[1].ID != rowID {
		t.Errorf("Existing component should be kept as is: %v\n", saved)
	}

	// deselect 1
	inserted, removed, err = svc.PutComponents(ctx, scope, 3, []Selection{{ID: 0}})
	if err != nil {
		t.Fatalf("Couldn't put components: %v\n", err)
	}
	if inserted != 0 || removed != 1 {
		t.Errorf("Expected 0 inserts 1 removal, got %d and %d\n", inserted, removed)
	}
	saved, _ = svc.SavedComponents(ctx, scope)
	if _, found := saved[1]; found || len(saved) != 1 {
		t.Errorf("Deselected component should be deleted: %v\n", saved)
	}

	if _, _, err := svc.PutComponents(ctx, scope, 3, []Selection{{ID: 9}}); !catvol.IsNotFound(err) {
		t.Errorf("Expected NotFoundError for unknown tree component, got %v\n", err)
	}
	bad := scope
	bad.SkeletonID = 5
	if _, _, err := svc.PutComponents(ctx, bad, 3, nil); !catvol.IsNotFound(err) {
		t.Errorf("Expected NotFoundError for unknown skeleton, got %v\n", err)
	}
	bad = scope
	bad.StackID = 9
	if _, err := svc.SavedComponents(ctx, bad); !catvol.IsNotFound(err) {
		t.Errorf("Expected NotFoundError for unknown stack, got %v\n", err)
	}

	// no tree section: client box is kept
	scope.Z = 3
	if _, _, err := svc.PutComponents(ctx, scope, 3, []Selection{{ID: 4, MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}}); err != nil {
		t.Fatalf("Couldn't put components without tree section: %v\n", err)
	}
	saved, _ = svc.SavedComponents(ctx, scope)
	if saved[4].Bounds() != (catvol.Rect{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}) {
		t.Errorf("Expected client box kept, got %v\n", saved[4])
	}
}

func TestInitializeComponents(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	n, err := svc.InitializeComponents(ctx, testProject, testStack, testSkeleton, 8)
	if err != nil {
		t.Fatalf("Couldn't initialize components: %v\n", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 initialized component, got %d\n", n)
	}
	comps, err := db.SkeletonComponents(ctx, testProject, testStack, testSkeleton)
	if err != nil {
		t.Fatalf("Couldn't list components: %v\n", err)
	}
	if len(comps) != 1 {
		t.Fatalf("Expected 1 component, got %v\n", comps)
	}
	c := comps[0]
	if c.ComponentID != 1 || c.Z != 0 || c.Status != StatusAutoSelected || c.Threshold != 0.5 {
		t.Errorf("Expected lowest threshold component 1 auto-selected, got %+v\n", c)
	}

	n, err = svc.InitializeComponents(ctx, testProject, testStack, testSkeleton, 8)
	if err != nil {
		t.Fatalf("Couldn't re-initialize components: %v\n", err)
	}
	if n != 0 {
		t.Errorf("Expected existing components skipped, got %d new\n", n)
	}
}

func TestDrawings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	skel, comp := int64(testSkeleton), int64(1)

	bound := &Drawing{ProjectID: testProject, StackID: testStack, SkeletonID: &skel, ComponentID: &comp,
		Z: 0, MinX: 1, MinY: 1, MaxX: 5, MaxY: 5, Type: catvol.Misc, SVG: `<path d="M0 0"/>`}
	boundID, err := svc.PutDrawing(ctx, bound)
	if err != nil {
		t.Fatalf("Couldn't put drawing: %v\n", err)
	}
	free := &Drawing{ProjectID: testProject, StackID: testStack, Z: 0, MinX: 1, MinY: 1, MaxX: 5, MaxY: 5,
		Type: catvol.Soma, SVG: `<path d="M0 0"/>`}
	freeID, err := svc.PutDrawing(ctx, free)
	if err != nil {
		t.Fatalf("Couldn't put free drawing: %v\n", err)
	}
	if free.Status != StatusSelected {
		t.Errorf("Expected new drawing status %d, got %d\n", StatusSelected, free.Status)
	}

	scope := Scope{ProjectID: testProject, StackID: testStack, SkeletonID: testSkeleton, Z: 0}
	byComp, err := svc.DrawingsByComponent(ctx, scope, comp)
	if err != nil {
		t.Fatalf("Couldn't list drawings by component: %v\n", err)
	}
	if len(byComp) != 1 || byComp[0].ID != boundID {
		t.Errorf("Expected drawing %d for component, got %v\n", boundID, byComp)
	}
	byView, err := svc.DrawingsByView(ctx, testProject, testStack, 0)
	if err != nil {
		t.Fatalf("Couldn't list drawings by view: %v\n", err)
	}
	if len(byView) != 1 || byView[0].ID != freeID {
		t.Errorf("Expected free drawing %d in view, got %v\n", freeID, byView)
	}

	tests := []Drawing{
		{ProjectID: testProject, StackID: testStack, Z: 0, MaxX: 1, MaxY: 1, Type: 42, SVG: "<path/>"},
		{ProjectID: testProject, StackID: testStack, Z: 0, MaxX: 1, MaxY: 1, Type: catvol.Soma},
		{ProjectID: testProject, StackID: testStack, Z: 0, MinX: 4, MaxX: 1, Type: catvol.Soma, SVG: "<path/>"},
		{ProjectID: testProject, StackID: testStack, Z: 5, Type: catvol.Soma, SVG: "<path/>"},
	}
	for i := range tests {
		if _, err := svc.PutDrawing(ctx, &tests[i]); !catvol.IsValidation(err) {
			t.Errorf("Expected ValidationError for drawing %d, got %v\n", i, err)
		}
	}

	if err := svc.DeleteDrawing(ctx, freeID); err != nil {
		t.Fatalf("Couldn't delete drawing: %v\n", err)
	}
	if err := svc.DeleteDrawing(ctx, freeID); !catvol.IsNotFound(err) {
		t.Errorf("Expected NotFoundError deleting twice, got %v\n", err)
	}
}

func TestParsePayloads(t *testing.T) {
	keyed := `{"3": {"id": 3, "minX": 1, "minY": 2, "maxX": 3, "maxY": 4, "threshold": 0.25},
		"1": {"id": 1, "minX": 0, "minY": 0, "maxX": 0, "maxY": 0, "threshold": 0.5}}`
	sel, err := ParseSelection([]byte(keyed))
	if err != nil {
		t.Fatalf("Couldn't parse keyed selection: %v\n", err)
	}
	if len(sel) != 2 || sel[0].ID != 1 || sel[1].Threshold != 0.25 {
		t.Errorf("Bad keyed selection: %v\n", sel)
	}
	sel, err = ParseSelection([]byte(`[{"id": 2, "minX": 1, "minY": 2, "maxX": 3, "maxY": 4, "threshold": 1}]`))
	if err != nil || len(sel) != 1 || sel[0].MaxY != 4 {
		t.Errorf("Bad list selection %v: %v\n", sel, err)
	}
	if _, err := ParseSelection([]byte(`[{"id": 2}]`)); !catvol.IsValidation(err) {
		t.Errorf("Expected ValidationError for incomplete selection, got %v\n", err)
	}

	d, err := ParseDrawing([]byte(`{"componentId": null, "minX": 1, "minY": 2, "maxX": 3, "maxY": 4, "svg": "<path/>", "type": 500}`))
	if err != nil {
		t.Fatalf("Couldn't parse drawing: %v\n", err)
	}
	if !d.Free() || d.Type != catvol.Soma || d.MaxX != 3 {
		t.Errorf("Bad drawing: %+v\n", d)
	}
	bad := []string{
		`{"minX": 1, "minY": 2, "maxX": 3, "maxY": 4, "svg": "<path/>", "type": 501}`,
		`{"minX": 1, "minY": 2, "maxX": 3, "maxY": 4, "svg": "", "type": 500}`,
		`{"minX": 1.5, "minY": 2, "maxX": 3, "maxY": 4, "svg": "<path/>", "type": 500}`,
	}
	for _, b := range bad {
		if _, err := ParseDrawing([]byte(b)); !catvol.IsValidation(err) {
			t.Errorf("Expected ValidationError for %s, got %v\n", b, err)
		}
	}
}
