package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/componenttree"
	"github.com/janelia-flyem/catvol/sqlstore"
	"github.com/janelia-flyem/catvol/storage"
	"github.com/janelia-flyem/catvol/tiles"
	"github.com/janelia-flyem/catvol/volume"
)

type testFixture struct {
	svc       *Service
	db        *sqlstore.DB
	kv        storage.Store
	project   int64
	stack     int64
	skeleton  int64
	neuron    int64
	classes   map[string]int64
	relations map[string]int64
}

func seedRow(t *testing.T, db *sqlstore.DB, query string, args ...interface{}) int64 {
	res, err := db.SQL().ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Couldn't seed %q: %v\n", query, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("No insert id for %q: %v\n", query, err)
	}
	return id
}

func newTestFixture(t *testing.T, opts Options) *testFixture {
	svc, db, kv := NewTestService(t, opts)
	f := &testFixture{svc: svc, db: db, kv: kv, classes: map[string]int64{}, relations: map[string]int64{}}
	f.project = seedRow(t, db, "INSERT INTO project (title) VALUES (?)", "larva")
	f.stack = seedRow(t, db, `INSERT INTO stack (title, dim_x, dim_y, dim_z, res_x, res_y, res_z)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "em", 20, 20, 4, 4.0, 4.0, 50.0)
	seedRow(t, db, "INSERT INTO project_stack (project_id, stack_id) VALUES (?, ?)", f.project, f.stack)
	for _, name := range []string{"skeleton", "neuron", "group", "root"} {
		f.classes[name] = seedRow(t, db, "INSERT INTO class (project_id, class_name) VALUES (?, ?)", f.project, name)
	}
	for _, name := range []string{"presynaptic_to", "postsynaptic_to", "model_of", "element_of", "part_of"} {
		f.relations[name] = seedRow(t, db, "INSERT INTO relation (project_id, relation_name) VALUES (?, ?)", f.project, name)
	}
	f.skeleton = f.instance(t, "skeleton", "skeleton 1")
	f.neuron = f.instance(t, "neuron", "neuron 1")
	f.link(t, "model_of", f.skeleton, f.neuron)
	return f
}

func (f *testFixture) instance(t *testing.T, class, name string) int64 {
	return seedRow(t, f.db, "INSERT INTO class_instance (project_id, class_id, name) VALUES (?, ?, ?)",
		f.project, f.classes[class], name)
}

func (f *testFixture) link(t *testing.T, relation string, a, b int64) {
	seedRow(t, f.db, `INSERT INTO class_instance_class_instance (project_id, relation_id, class_instance_a, class_instance_b)
		VALUES (?, ?, ?, ?)`, f.project, f.relations[relation], a, b)
}

func (f *testFixture) treenode(t *testing.T, parent interface{}, x, y, z float64) int64 {
	return seedRow(t, f.db, `INSERT INTO treenode (project_id, parent_id, location_x, location_y, location_z, skeleton_id)
		VALUES (?, ?, ?, ?, ?, ?)`, f.project, parent, x, y, z, f.skeleton)
}

func (f *testFixture) stackURL(op string) string {
	return fmt.Sprintf("%s%d/%d/%s", WebAPIPath, f.project, f.stack, op)
}

func square(x0, y0, n int32) []catvol.Pixel {
	var pixels []catvol.Pixel
	for y := y0; y < y0+n; y++ {
		for x := x0; x < x0+n; x++ {
			pixels = append(pixels, catvol.Pixel{X: x, Y: y})
		}
	}
	return pixels
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Couldn't decode response %q: %v\n", string(data), err)
	}
}

func TestServerInfo(t *testing.T) {
	f := newTestFixture(t, Options{Note: "test server", Host: "testhost"})
	var info map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", WebAPIPath+"server/info", nil), &info)
	if info["version"] != Version {
		t.Errorf("Expected version %s, got %v\n", Version, info["version"])
	}
	if info["note"] != "test server" || info["host"] != "testhost" {
		t.Errorf("Bad server info: %v\n", info)
	}

	var types map[string]map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", WebAPIPath+"drawing-types", nil), &types)
	if len(types) != 5 {
		t.Errorf("Expected 5 drawing types, got %d\n", len(types))
	}
}

func TestBadRequests(t *testing.T) {
	f := newTestFixture(t, Options{})
	tests := []struct {
		method string
		url    string
		status int
	}{
		{"GET", f.stackURL("components/at?x=abc&y=1&z=1"), http.StatusBadRequest},
		{"GET", f.stackURL("components/at?x=-1&y=1&z=1"), http.StatusBadRequest},
		{"GET", f.stackURL("components/at?x=4294967298&y=3&z=1"), http.StatusBadRequest},
		{"GET", f.stackURL("components/at?x=2&y=3&z=4294967297"), http.StatusBadRequest},
		{"GET", f.stackURL("tile?width=200000&height=200000"), http.StatusBadRequest},
		{"GET", fmt.Sprintf("%s0/%d/components/at?x=1&y=1&z=1", WebAPIPath, f.stack), http.StatusBadRequest},
		{"GET", f.stackURL("components/at?x=1&y=1&z=1"), http.StatusNotFound},
		{"GET", f.stackURL("components/image?z=1"), http.StatusBadRequest},
		{"GET", f.stackURL("components/saved?z=1"), http.StatusBadRequest},
		{"GET", f.stackURL("tile?width=0&height=4"), http.StatusBadRequest},
		{"GET", f.stackURL("tile?width=4&height=4&file_extension=gif"), http.StatusBadRequest},
		{"GET", WebAPIPath + "nowhere", http.StatusNotFound},
		{"GET", fmt.Sprintf("%s%d/skeleton/%d/root", WebAPIPath, f.project, f.skeleton), http.StatusNotFound},
	}
	for _, tc := range tests {
		resp := TestHTTPResponse(t, f.svc, tc.method, tc.url, nil)
		if resp.Code != tc.status {
			t.Errorf("%s %s: expected status %d, got %d: %s\n", tc.method, tc.url, tc.status, resp.Code, resp.Body.String())
		}
		var body map[string]string
		decodeJSON(t, resp.Body.Bytes(), &body)
		if body["error"] == "" {
			t.Errorf("%s %s: no error message in %q\n", tc.method, tc.url, resp.Body.String())
		}
	}
}

func TestComponentRoutes(t *testing.T) {
	f := newTestFixture(t, Options{})
	tree := componenttree.New(f.kv, f.project, f.stack)
	err := tree.ImportSection(1, []componenttree.Component{
		{Threshold: 0.2, Pixels: square(2, 2, 2)},
		{Threshold: 0.5, Pixels: square(1, 1, 5)},
	})
	if err != nil {
		t.Fatalf("Couldn't import section: %v\n", err)
	}

	var matches map[string]componenttree.Match
	decodeJSON(t, TestHTTP(t, f.svc, "GET", f.stackURL("components/at?x=2&y=3&z=1"), nil), &matches)
	if len(matches) != 2 {
		t.Fatalf("Expected 2 components at (2,3), got %v\n", matches)
	}
	if m := matches["1"]; m.MinX != 1 || m.MaxX != 5 || m.Threshold != 0.5 {
		t.Errorf("Bad match for component 1: %+v\n", m)
	}
	var limited map[string]componenttree.Match
	decodeJSON(t, TestHTTP(t, f.svc, "GET", f.stackURL("components/at?x=5&y=5&z=1&limit=1"), nil), &limited)
	if _, found := limited["1"]; len(limited) != 1 || !found {
		t.Errorf("Expected only component 1 at (5,5), got %v\n", limited)
	}
	var lowest map[string]componenttree.Match
	decodeJSON(t, TestHTTP(t, f.svc, "GET", f.stackURL("components/at?x=2&y=3&z=1&limit=1"), nil), &lowest)
	if m, found := lowest["0"]; len(lowest) != 1 || !found || m.Threshold != 0.2 {
		t.Errorf("Expected only the lowest threshold component 0 at (2,3), got %v\n", lowest)
	}

	img := TestHTTP(t, f.svc, "GET", f.stackURL("components/image?id=0&z=1&red=255&green=0&blue=0"), nil)
	decoded, err := png.Decode(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("Component image is not a PNG: %v\n", err)
	}
	if b := decoded.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("Expected 2x2 component image, got %v\n", b)
	}

	selection := `{"0": {"id": 0, "minX": 2, "minY": 2, "maxX": 3, "maxY": 3, "threshold": 0.2}}`
	resp := TestPostForm(t, f.svc, f.stackURL("components/put"), url.Values{
		"skeleton_id": {fmt.Sprint(f.skeleton)},
		"z":           {"1"},
		"components":  {selection},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad put components response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var counts map[string]int
	decodeJSON(t, resp.Body.Bytes(), &counts)
	if counts["inserted"] != 1 || counts["removed"] != 0 {
		t.Errorf("Unexpected put counts: %v\n", counts)
	}

	var saved map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", f.stackURL(fmt.Sprintf("components/saved?skeleton_id=%d&z=1", f.skeleton)), nil), &saved)
	if len(saved) != 1 {
		t.Errorf("Expected 1 saved component, got %v\n", saved)
	}

	resp = TestPostForm(t, f.svc, f.stackURL("components/put"), url.Values{
		"skeleton_id": {fmt.Sprint(f.skeleton)},
		"z":           {"1"},
		"components":  {`{"0": {"id": 0}}`},
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on incomplete selection, got %d\n", resp.Code)
	}
}

func TestInitializeComponents(t *testing.T) {
	f := newTestFixture(t, Options{})
	tree := componenttree.New(f.kv, f.project, f.stack)
	if err := tree.ImportSection(1, []componenttree.Component{{Threshold: 0.3, Pixels: square(2, 2, 3)}}); err != nil {
		t.Fatalf("Couldn't import section: %v\n", err)
	}
	root := f.treenode(t, nil, 12.0, 12.0, 50.0)
	f.treenode(t, root, 13.0, 13.0, 50.0)

	resp := TestPostForm(t, f.svc, f.stackURL("components/initialize"), url.Values{
		"skeleton_id": {fmt.Sprint(f.skeleton)},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad initialize response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var result map[string]interface{}
	decodeJSON(t, resp.Body.Bytes(), &result)
	if result["created"] != 1.0 {
		t.Errorf("Expected one component for two treenodes in it, got %v\n", result)
	}
}

func TestDrawingRoutes(t *testing.T) {
	f := newTestFixture(t, Options{})
	drawing := `{"minX": 1, "minY": 1, "maxX": 6, "maxY": 6, "type": 300,
		"svg": "<svg xmlns=\"http://www.w3.org/2000/svg\"><rect width=\"5\" height=\"5\" fill=\"white\"/></svg>"}`
	resp := TestPostForm(t, f.svc, f.stackURL("drawings/put"), url.Values{
		"drawing":     {drawing},
		"skeleton_id": {"null"},
		"z":           {"2"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad put drawing response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var created map[string]int64
	decodeJSON(t, resp.Body.Bytes(), &created)
	if created["id"] <= 0 {
		t.Fatalf("Bad drawing id: %v\n", created)
	}

	var drawings []map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", f.stackURL("drawings/view?z=2"), nil), &drawings)
	if len(drawings) != 1 || drawings[0]["type"] != 300.0 {
		t.Fatalf("Expected the free drawing on section 2, got %v\n", drawings)
	}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", f.stackURL("drawings/view?z=3"), nil), &drawings)
	if len(drawings) != 0 {
		t.Errorf("Expected no drawings on section 3, got %v\n", drawings)
	}

	bad := strings.Replace(drawing, "300", "301", 1)
	resp = TestPostForm(t, f.svc, f.stackURL("drawings/put"), url.Values{"drawing": {bad}, "z": {"2"}})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown drawing type, got %d\n", resp.Code)
	}

	id := url.Values{"id": {fmt.Sprint(created["id"])}}
	if resp = TestPostForm(t, f.svc, f.stackURL("drawings/delete"), id); resp.Code != http.StatusOK {
		t.Fatalf("Bad delete response (%d): %s\n", resp.Code, resp.Body.String())
	}
	if resp = TestPostForm(t, f.svc, f.stackURL("drawings/delete"), id); resp.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting a deleted drawing, got %d\n", resp.Code)
	}
}

func encodePNG(t *testing.T, img image.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Couldn't encode PNG: %v\n", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestTileRoutes(t *testing.T) {
	f := newTestFixture(t, Options{TileCacheBytes: tiles.MinCacheBytes})
	raw := catvol.NewGray8(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			raw.Set(x, y, uint8(10*y+x))
		}
	}
	if _, err := volume.PutImageSection(f.kv, volume.NewLocker(), f.project, f.stack, "/", 0, 1, raw); err != nil {
		t.Fatalf("Couldn't store raw section: %v\n", err)
	}

	resp := TestHTTPResponse(t, f.svc, "GET", f.stackURL("tile?x=2&y=3&width=4&height=4&z=1&row=y&col=x"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad tile response (%d): %s\n", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png tile, got %s\n", ct)
	}
	tile, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Tile is not a PNG: %v\n", err)
	}
	if v := color.GrayModel.Convert(tile.At(0, 0)).(color.Gray).Y; v != 32 {
		t.Errorf("Expected tile origin value 32, got %d\n", v)
	}
	TestBadHTTP(t, f.svc, "GET", f.stackURL("tile?width=4&height=4&z=3"), nil)

	painted := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range painted.Pix {
		painted.Pix[i] = 255
	}
	resp = TestPostForm(t, f.svc, f.stackURL("tile"), url.Values{
		"x": {"1"}, "y": {"1"}, "width": {"2"}, "height": {"2"}, "z": {"1"}, "scale": {"0"},
		"image": {encodePNG(t, painted)},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad put tile response (%d): %s\n", resp.Code, resp.Body.String())
	}
	if resp.Body.String() != "Image pushed to HDF5." {
		t.Errorf("Unexpected put tile response %q\n", resp.Body.String())
	}

	labels, err := volume.ReadGray(f.kv, volume.RawContext(f.project, f.stack), volume.ImagePath(volume.LabelsPath, 0, 1))
	if err != nil {
		t.Fatalf("Couldn't read labels: %v\n", err)
	}
	if labels.Width != 8 || labels.At(1, 1) != 255 || labels.At(0, 0) != 0 {
		t.Errorf("Bad label plane after put tile: %v\n", labels)
	}
}

func TestBuildVolumeRateLimit(t *testing.T) {
	f := newTestFixture(t, Options{BuildsPerMinute: 1})
	resp := TestPostForm(t, f.svc, f.stackURL("volume/build"), url.Values{})
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad build response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var m volume.Manifest
	decodeJSON(t, resp.Body.Bytes(), &m)
	if m.Generation == "" || len(m.Sections) != 4 {
		t.Errorf("Unexpected manifest: %+v\n", m)
	}
	if resp.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected no builds remaining, got %q\n", resp.Header().Get("X-RateLimit-Remaining"))
	}

	resp = TestPostForm(t, f.svc, f.stackURL("volume/build"), url.Values{})
	if resp.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on second build, got %d\n", resp.Code)
	}
}

func TestNodeRoutes(t *testing.T) {
	f := newTestFixture(t, Options{})
	root := f.treenode(t, nil, 100.0, 100.0, 50.0)
	child := f.treenode(t, root, 120.0, 110.0, 50.0)
	f.treenode(t, child, 900.0, 900.0, 500.0)

	var list []map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET",
		fmt.Sprintf("%s%d/nodes?z=50&top=0&left=0&width=500&height=500&zres=50", WebAPIPath, f.project), nil), &list)
	if len(list) != 2 {
		t.Fatalf("Expected 2 treenodes in view, got %v\n", list)
	}
	if list[0]["id"] != float64(root) || list[1]["id"] != float64(child) {
		t.Errorf("Expected treenodes ordered by id, got %v\n", list)
	}

	resp := TestPostForm(t, f.svc, fmt.Sprintf("%s%d/nodes/nearest", WebAPIPath, f.project), url.Values{
		"x": {"118"}, "y": {"108"}, "z": {"50"}, "skeleton_id": {fmt.Sprint(f.skeleton)},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad nearest response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var nearest map[string]interface{}
	decodeJSON(t, resp.Body.Bytes(), &nearest)
	if nearest["treenode_id"] != float64(child) {
		t.Errorf("Expected nearest treenode %d, got %v\n", child, nearest)
	}
	resp = TestPostForm(t, f.svc, fmt.Sprintf("%s%d/nodes/nearest", WebAPIPath, f.project), url.Values{"x": {"1"}})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without skeleton or neuron, got %d\n", resp.Code)
	}

	var rootInfo map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", fmt.Sprintf("%s%d/skeleton/%d/root", WebAPIPath, f.project, f.skeleton), nil), &rootInfo)
	if rootInfo["root_id"] != float64(root) || rootInfo["x"] != 100.0 {
		t.Errorf("Bad skeleton root: %v\n", rootInfo)
	}
}

func TestSkeletonHierarchyRoutes(t *testing.T) {
	f := newTestFixture(t, Options{})
	group := f.instance(t, "group", "fragments")
	top := f.instance(t, "root", "neuropile")
	f.link(t, "part_of", f.neuron, group)
	f.link(t, "part_of", group, top)

	skel := url.Values{"skeleton_id": {fmt.Sprint(f.skeleton)}}
	resp := TestPostForm(t, f.svc, fmt.Sprintf("%s%d/skeleton/ancestry", WebAPIPath, f.project), skel)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad ancestry response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var ancestry []map[string]interface{}
	decodeJSON(t, resp.Body.Bytes(), &ancestry)
	if len(ancestry) != 3 || ancestry[0]["id"] != float64(f.neuron) || ancestry[2]["id"] != float64(top) {
		t.Errorf("Bad ancestry: %v\n", ancestry)
	}

	resp = TestPostForm(t, f.svc, fmt.Sprintf("%s%d/skeleton/path", WebAPIPath, f.project), skel)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad path response (%d): %s\n", resp.Code, resp.Body.String())
	}
	var path []int64
	decodeJSON(t, resp.Body.Bytes(), &path)
	expected := []int64{top, group, f.neuron, f.skeleton}
	if fmt.Sprint(path) != fmt.Sprint(expected) {
		t.Errorf("Expected path %v, got %v\n", expected, path)
	}

	// A second skeleton whose neuron sits in a part_of cycle.
	loopSkeleton := f.instance(t, "skeleton", "skeleton 2")
	loopNeuron := f.instance(t, "neuron", "neuron 2")
	a := f.instance(t, "group", "a")
	b := f.instance(t, "group", "b")
	f.link(t, "model_of", loopSkeleton, loopNeuron)
	f.link(t, "part_of", loopNeuron, a)
	f.link(t, "part_of", a, b)
	f.link(t, "part_of", b, a)
	resp = TestPostForm(t, f.svc, fmt.Sprintf("%s%d/skeleton/ancestry", WebAPIPath, f.project),
		url.Values{"skeleton_id": {fmt.Sprint(loopSkeleton)}})
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a part_of cycle, got %d: %s\n", resp.Code, resp.Body.String())
	}
}

func TestClassificationRoutes(t *testing.T) {
	f := newTestFixture(t, Options{})
	workspace := seedRow(t, f.db, "INSERT INTO project (title) VALUES (?)", "ontology workspace")
	rootClass := seedRow(t, f.db, "INSERT INTO class (project_id, class_name) VALUES (?, ?)", workspace, "classification_root")
	graph := seedRow(t, f.db, "INSERT INTO class_instance (project_id, class_id, name) VALUES (?, ?, ?)", workspace, rootClass, "ssTEM")
	missing := int64(99999)

	tag := seedRow(t, f.db, "INSERT INTO tag (name) VALUES (?)", "ssTEM")
	first := seedRow(t, f.db, "INSERT INTO project (title) VALUES (?)", "first")
	second := seedRow(t, f.db, "INSERT INTO project (title) VALUES (?)", "second")
	third := seedRow(t, f.db, "INSERT INTO project (title) VALUES (?)", "third")
	for _, pid := range []int64{first, second, third} {
		seedRow(t, f.db, "INSERT INTO project_tag (project_id, tag_id) VALUES (?, ?)", pid, tag)
	}
	seedRow(t, f.db, "INSERT INTO classification_link (workspace_id, project_id, root_id) VALUES (?, ?, ?)", workspace, first, graph)
	seedRow(t, f.db, "INSERT INTO classification_link (workspace_id, project_id, root_id) VALUES (?, ?, ?)", workspace, second, graph)
	seedRow(t, f.db, "INSERT INTO classification_link (workspace_id, project_id, root_id) VALUES (?, ?, ?)", workspace, second, missing)

	groupsURL := fmt.Sprintf("%sclassification/taggroups?workspace=%d", WebAPIPath, workspace)
	var groups []map[string]interface{}
	decodeJSON(t, TestHTTP(t, f.svc, "GET", groupsURL, nil), &groups)
	if len(groups) != 1 || groups[0]["name"] != "ssTEM" {
		t.Fatalf("Expected the ssTEM tag group, got %v\n", groups)
	}
	if !strings.HasPrefix(groups[0]["description"].(string), "ssTEM (2/3 differ") {
		t.Errorf("Unexpected description %q\n", groups[0]["description"])
	}

	// The root only linked to the second project does not exist in the workspace.
	resp := TestPostForm(t, f.svc, WebAPIPath+"classification/link", url.Values{
		"workspace":  {fmt.Sprint(workspace)},
		"tag_groups": {"ssTEM"},
	})
	if resp.Code != http.StatusMultiStatus {
		t.Fatalf("Expected 207 for partially applied links, got %d: %s\n", resp.Code, resp.Body.String())
	}
	var result struct {
		Linked int              `json:"linked"`
		Failed map[string]string `json:"failed"`
	}
	decodeJSON(t, resp.Body.Bytes(), &result)
	if result.Linked != 1 {
		t.Errorf("Expected 1 link to be created, got %d\n", result.Linked)
	}
	if _, found := result.Failed[fmt.Sprint(missing)]; !found || len(result.Failed) != 1 {
		t.Errorf("Expected failures only for root %d, got %v\n", missing, result.Failed)
	}

	resp = TestPostForm(t, f.svc, WebAPIPath+"classification/link", url.Values{
		"workspace":  {fmt.Sprint(workspace)},
		"tag_groups": {"no such group"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown tag group, got %d\n", resp.Code)
	}
}
