package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/classification"
	"github.com/janelia-flyem/catvol/nodes"
	"github.com/janelia-flyem/catvol/segment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catvol.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB, query string, args ...interface{}) int64 {
	id, err := db.insert(context.Background(), db.db, query, args...)
	require.NoError(t, err, query)
	return id
}

type fixture struct {
	project   int64
	stack     int64
	skeleton  int64
	neuron    int64
	relations map[string]int64
	classes   map[string]int64
}

func newFixture(t *testing.T, db *DB) *fixture {
	f := &fixture{relations: map[string]int64{}, classes: map[string]int64{}}
	f.project = seed(t, db, "INSERT INTO project (title) VALUES (?)", "larva")
	f.stack = seed(t, db, `INSERT INTO stack (title, dim_x, dim_y, dim_z, res_x, res_y, res_z)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "em", 100, 80, 6, 4.0, 4.0, 50.0)
	_, err := db.exec(context.Background(), db.db, "INSERT INTO project_stack (project_id, stack_id) VALUES (?, ?)", f.project, f.stack)
	require.NoError(t, err)
	for _, z := range []int{2, 4} {
		_, err := db.exec(context.Background(), db.db, "INSERT INTO broken_slice (stack_id, z) VALUES (?, ?)", f.stack, z)
		require.NoError(t, err)
	}
	for _, name := range []string{"skeleton", "neuron", "group", "root"} {
		f.classes[name] = seed(t, db, "INSERT INTO class (project_id, class_name) VALUES (?, ?)", f.project, name)
	}
	for _, name := range []string{"presynaptic_to", "postsynaptic_to", "model_of", "element_of", "part_of"} {
		f.relations[name] = seed(t, db, "INSERT INTO relation (project_id, relation_name) VALUES (?, ?)", f.project, name)
	}
	f.skeleton = f.instance(t, db, "skeleton", "skeleton 1")
	f.neuron = f.instance(t, db, "neuron", "neuron 1")
	f.link(t, db, "model_of", f.skeleton, f.neuron)
	return f
}

func (f *fixture) instance(t *testing.T, db *DB, class, name string) int64 {
	return seed(t, db, "INSERT INTO class_instance (project_id, class_id, name) VALUES (?, ?, ?)", f.project, f.classes[class], name)
}

func (f *fixture) link(t *testing.T, db *DB, relation string, a, b int64) {
	seed(t, db, `INSERT INTO class_instance_class_instance (project_id, relation_id, class_instance_a, class_instance_b)
		VALUES (?, ?, ?, ?)`, f.project, f.relations[relation], a, b)
}

func (f *fixture) treenode(t *testing.T, db *DB, skeleton int64, parent *int64, x, y, z float64) int64 {
	return seed(t, db, `INSERT INTO treenode (project_id, parent_id, location_x, location_y, location_z, skeleton_id)
		VALUES (?, ?, ?, ?, ?, ?)`, f.project, nullable(parent), x, y, z, skeleton)
}

func TestRebind(t *testing.T) {
	d := &DB{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM b WHERE c = $1 AND d IN ($2, $3)", d.rebind("SELECT a FROM b WHERE c = ? AND d IN (?, ?)"))
	cond, args := d.in("id", []int64{1, 2})
	assert.Equal(t, "id = ANY(?)", cond)
	assert.Len(t, args, 1)

	d.driver = DriverSQLite
	assert.Equal(t, "c = ?", d.rebind("c = ?"))
	cond, args = d.in("id", []int64{1, 2, 3})
	assert.Equal(t, "id IN (?, ?, ?)", cond)
	assert.Len(t, args, 3)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestStackAndSkeleton(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()

	stack, err := db.Stack(ctx, f.project, f.stack)
	require.NoError(t, err)
	assert.Equal(t, catvol.Dims3d{X: 100, Y: 80, Z: 6}, stack.Dimension)
	assert.Equal(t, []int32{2, 4}, stack.BrokenSlices)
	assert.Equal(t, []int32{0, 1, 3, 5}, stack.Sections())

	_, err = db.Stack(ctx, f.project+1, f.stack)
	assert.True(t, catvol.IsNotFound(err))

	assert.NoError(t, db.Skeleton(ctx, f.project, f.skeleton))
	assert.True(t, catvol.IsNotFound(db.Skeleton(ctx, f.project, f.neuron)), "a neuron is not a skeleton")
}

func TestComponentsAndDrawings(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()
	scope := segment.Scope{ProjectID: f.project, StackID: f.stack, SkeletonID: f.skeleton, Z: 1}

	insert := []segment.Component{
		{ProjectID: f.project, StackID: f.stack, SkeletonID: f.skeleton, ComponentID: 9, Z: 1, MaxX: 3, MaxY: 3, Threshold: 0.5, Status: segment.StatusSelected},
		{ProjectID: f.project, StackID: f.stack, SkeletonID: f.skeleton, ComponentID: 4, Z: 1, MaxX: 2, MaxY: 2, Threshold: 0.2, Status: segment.StatusSelected},
		{ProjectID: f.project, StackID: f.stack, SkeletonID: f.skeleton, ComponentID: 7, Z: 3, MaxX: 2, MaxY: 2, Threshold: 0.2, Status: segment.StatusAutoSelected},
	}
	require.NoError(t, db.ReplaceComponents(ctx, insert, nil))
	saved, err := db.Components(ctx, scope)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, int64(4), saved[0].ComponentID)
	assert.Equal(t, 0.5, saved[1].Threshold)

	// A missing row aborts the whole replacement.
	err = db.ReplaceComponents(ctx, insert[:1], []int64{saved[0].ID, 9999})
	assert.True(t, catvol.IsNotFound(err))
	all, err := db.SkeletonComponents(ctx, f.project, f.stack, f.skeleton)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	component := int64(4)
	free := &segment.Drawing{ProjectID: f.project, StackID: f.stack, Z: 1, MaxX: 5, MaxY: 5, Type: catvol.Soma, SVG: "<path d='M0 0'/>", Status: 1}
	bound := &segment.Drawing{ProjectID: f.project, StackID: f.stack, SkeletonID: &f.skeleton, ComponentID: &component, Z: 1, MaxX: 5, MaxY: 5, Type: catvol.Membrane, SVG: "<path d='M0 0'/>", Status: 1}
	freeID, err := db.InsertDrawing(ctx, free)
	require.NoError(t, err)
	boundID, err := db.InsertDrawing(ctx, bound)
	require.NoError(t, err)

	frees, err := db.Drawings(ctx, segment.DrawingFilter{ProjectID: f.project, StackID: f.stack, Z: 1, Kind: segment.FreeDrawings})
	require.NoError(t, err)
	require.Len(t, frees, 1)
	assert.Equal(t, freeID, frees[0].ID)
	assert.Nil(t, frees[0].ComponentID)
	assert.Equal(t, catvol.Soma, frees[0].Type)

	byComponent, err := db.Drawings(ctx, segment.DrawingFilter{ProjectID: f.project, StackID: f.stack, Z: 1,
		SkeletonID: &f.skeleton, ComponentID: &component, Kind: segment.ComponentDrawings})
	require.NoError(t, err)
	require.Len(t, byComponent, 1)
	assert.Equal(t, boundID, byComponent[0].ID)
	assert.Equal(t, component, *byComponent[0].ComponentID)

	require.NoError(t, db.DeleteDrawing(ctx, freeID))
	assert.True(t, catvol.IsNotFound(db.DeleteDrawing(ctx, freeID)))
}

func TestListNodesRowCap(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()

	tx, err := db.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	for i := 0; i < nodes.RowLimit+1; i++ {
		_, err := db.exec(ctx, tx, `INSERT INTO treenode (project_id, location_x, location_y, location_z, skeleton_id)
			VALUES (?, ?, ?, ?, ?)`, f.project, float64(i%100), float64(i/100), 100.0, f.skeleton+1000)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	v := nodes.Viewport{ProjectID: f.project, Z: 100, Left: 0, Top: 0, Width: 100, Height: 100, ZRes: 50}
	result, err := nodes.ListNodes(ctx, db, v)
	require.NoError(t, err)
	require.Len(t, result.Treenodes, nodes.RowLimit)
	for i, tn := range result.Treenodes {
		require.Equal(t, int64(i+1), tn.ID, "truncation keeps the lowest ids")
	}
}

func TestListNodesActiveAndBackfill(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()

	inside := f.treenode(t, db, f.skeleton, nil, 10, 10, 100)
	far := f.treenode(t, db, f.skeleton+1, nil, 5000, 5000, 900)
	active := f.treenode(t, db, f.skeleton, &inside, 7000, 7000, 100)
	outside := f.treenode(t, db, f.skeleton+2, nil, 8000, 8000, 100)

	connector := seed(t, db, `INSERT INTO connector (project_id, location_x, location_y, location_z) VALUES (?, ?, ?, ?)`,
		f.project, 20.0, 20.0, 250.0)
	for _, link := range []struct {
		relation string
		treenode int64
	}{{"presynaptic_to", inside}, {"postsynaptic_to", far}, {"postsynaptic_to", far}} {
		seed(t, db, `INSERT INTO treenode_connector (project_id, relation_id, treenode_id, connector_id, confidence)
			VALUES (?, ?, ?, ?, ?)`, f.project, f.relations[link.relation], link.treenode, connector, 4)
	}
	lonely := seed(t, db, `INSERT INTO connector (project_id, location_x, location_y, location_z) VALUES (?, ?, ?, ?)`,
		f.project, 30.0, 30.0, 100.0)

	v := nodes.Viewport{ProjectID: f.project, Z: 100, Width: 100, Height: 100, ZRes: 50, ActiveSkeleton: f.skeleton}
	result, err := nodes.ListNodes(ctx, db, v)
	require.NoError(t, err)

	var ids []int64
	for _, tn := range result.Treenodes {
		ids = append(ids, tn.ID)
	}
	assert.Equal(t, []int64{inside, far, active}, ids, "far node appears once and outside node is excluded")
	assert.NotContains(t, ids, outside)

	require.Len(t, result.Connectors, 2)
	c := result.Connectors[0]
	assert.Equal(t, connector, c.ID)
	assert.Equal(t, []nodes.Link{{TreenodeID: inside, Confidence: 4}}, c.Pre)
	assert.Len(t, c.Post, 2)
	assert.Equal(t, 150.0, c.ZDiff)
	assert.Equal(t, lonely, result.Connectors[1].ID)
	assert.Empty(t, result.Connectors[1].Pre)

	v.ActiveSkeleton = 0
	result, err = nodes.ListNodes(ctx, db, v)
	require.NoError(t, err)
	require.Len(t, result.Treenodes, 2)
}

func TestHierarchyQueries(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()

	group := f.instance(t, db, "group", "Fragments")
	root := f.instance(t, db, "root", "neuropile")
	f.link(t, db, "part_of", f.neuron, group)
	f.link(t, db, "part_of", group, root)

	ancestry, err := nodes.SkeletonAncestry(ctx, db, f.project, f.skeleton)
	require.NoError(t, err)
	assert.Equal(t, []nodes.Instance{
		{ID: f.neuron, Name: "neuron 1", Class: "neuron"},
		{ID: group, Name: "Fragments", Class: "group"},
		{ID: root, Name: "neuropile", Class: "root"},
	}, ancestry)

	path, err := nodes.TreeObjectPath(ctx, db, f.project, f.skeleton)
	require.NoError(t, err)
	assert.Equal(t, []int64{root, group, f.neuron, f.skeleton}, path)

	first := f.treenode(t, db, f.skeleton, nil, 1, 2, 3)
	f.treenode(t, db, f.skeleton, &first, 40, 40, 40)
	tn, err := nodes.SkeletonRoot(ctx, db, f.project, f.skeleton)
	require.NoError(t, err)
	assert.Equal(t, first, tn.ID)

	near, err := nodes.NearestNode(ctx, db, f.project, catvol.Point3d{X: 35, Y: 35, Z: 35}, 0, f.neuron)
	require.NoError(t, err)
	assert.NotEqual(t, first, near.ID)

	locations, err := db.SkeletonLocations(ctx, f.project, f.skeleton)
	require.NoError(t, err)
	assert.Equal(t, []catvol.Point3d{{X: 1, Y: 2, Z: 3}, {X: 40, Y: 40, Z: 40}}, locations)
}

func TestNameCache(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()

	rels, err := db.Relations(ctx, f.project)
	require.NoError(t, err)
	assert.Len(t, rels, 5)

	seed(t, db, "INSERT INTO relation (project_id, relation_name) VALUES (?, ?)", f.project, "labeled_as")
	rels, err = db.Relations(ctx, f.project)
	require.NoError(t, err)
	assert.Len(t, rels, 5, "cached map is served until flushed")

	db.FlushNames()
	rels, err = db.Relations(ctx, f.project)
	require.NoError(t, err)
	assert.Contains(t, rels, "labeled_as")
}

func TestClassificationStore(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t, db)
	ctx := context.Background()

	other := seed(t, db, "INSERT INTO project (title) VALUES (?)", "larva 2")
	em := seed(t, db, "INSERT INTO tag (name) VALUES (?)", "EM")
	larva := seed(t, db, "INSERT INTO tag (name) VALUES (?)", "larva")
	for _, pt := range [][2]int64{{f.project, larva}, {f.project, em}, {other, em}, {other, larva}} {
		_, err := db.exec(ctx, db.db, "INSERT INTO project_tag (project_id, tag_id) VALUES (?, ?)", pt[0], pt[1])
		require.NoError(t, err)
	}
	workspace := f.project
	graph := f.instance(t, db, "root", "classification")
	require.NoError(t, db.LinkClassification(ctx, workspace, 3, f.project, graph))

	projects, err := db.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, []classification.Tag{{ID: em, Name: "EM"}, {ID: larva, Name: "larva"}}, projects[0].Tags)

	groups, err := classification.TagGroups(ctx, db, workspace, classification.Options{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "EM, larva", groups[0].Name)

	n, err := classification.ApplyLinks(ctx, db, 3, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	roots, err := db.ClassificationRoots(ctx, workspace, []int64{f.project, other})
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int64{f.project: {graph}, other: {graph}}, roots)

	assert.Error(t, db.LinkClassification(ctx, workspace, 3, other, graph), "duplicate link")
	assert.True(t, catvol.IsNotFound(db.LinkClassification(ctx, workspace, 3, other, 9999)))
}
