package nodes

import (
	"context"
	"sort"

	"github.com/janelia-flyem/catvol/catvol"
)

const (
	// RowLimit caps the treenodes and connector rows fetched for a viewport.
	RowLimit = 2000

	// TreenodeZBound and ConnectorZBound scale the z resolution into the half-depth of
	// the query volume for treenodes and connectors.
	TreenodeZBound  = 1.0
	ConnectorZBound = 4.1
)

// Viewport is a node list request.  ActiveSkeleton is 0 when no skeleton is active.
type Viewport struct {
	ProjectID      int64
	Z              int
	Top            int
	Left           int
	Width          int
	Height         int
	ZRes           int
	ActiveSkeleton int64
}

func (v Viewport) box(zbound float64) Box {
	z, halfDepth := float64(v.Z), zbound*float64(v.ZRes)
	return Box{
		MinX: float64(v.Left),
		MaxX: float64(v.Left + v.Width),
		MinY: float64(v.Top),
		MaxY: float64(v.Top + v.Height),
		MinZ: z - halfDepth,
		MaxZ: z + halfDepth,
	}
}

// ListNodes returns the treenodes and connectors to draw for a viewport.  The active
// skeleton is always included in full, and treenodes linked to a returned connector
// are fetched even when they lie outside the viewport.
func ListNodes(ctx context.Context, store Store, v Viewport) (*Nodes, error) {
	classes, err := store.Classes(ctx, v.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := requireNames("class", classes, ClassSkeleton); err != nil {
		return nil, err
	}
	relations, err := store.Relations(ctx, v.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := requireNames("relation", relations, RelPresynapticTo, RelPostsynapticTo, RelModelOf, RelElementOf); err != nil {
		return nil, err
	}

	treenodes := make(map[int64]Treenode)
	add := func(tns []Treenode) {
		for _, tn := range tns {
			treenodes[tn.ID] = tn
		}
	}
	inBox, err := store.TreenodesInBox(ctx, v.ProjectID, v.box(TreenodeZBound), RowLimit)
	if err != nil {
		return nil, err
	}
	add(inBox)
	if v.ActiveSkeleton != 0 {
		active, err := store.SkeletonTreenodes(ctx, v.ProjectID, v.ActiveSkeleton)
		if err != nil {
			return nil, err
		}
		add(active)
	}

	rows, err := store.ConnectorsInBox(ctx, v.ProjectID, v.box(ConnectorZBound), RowLimit)
	if err != nil {
		return nil, err
	}
	var missing []int64
	seen := make(map[int64]bool)
	for _, row := range rows {
		if row.TreenodeID == nil {
			continue
		}
		id := *row.TreenodeID
		if _, found := treenodes[id]; !found && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	if len(missing) > 0 {
		linked, err := store.TreenodesByID(ctx, v.ProjectID, missing)
		if err != nil {
			return nil, err
		}
		add(linked)
	}

	result := &Nodes{
		Treenodes:  make([]Treenode, 0, len(treenodes)),
		Connectors: foldConnectors(rows, relations[RelPresynapticTo]),
	}
	for _, tn := range treenodes {
		tn.ZDiff = tn.Z - float64(v.Z)
		tn.Type = "treenode"
		result.Treenodes = append(result.Treenodes, tn)
	}
	sort.Slice(result.Treenodes, func(i, j int) bool { return result.Treenodes[i].ID < result.Treenodes[j].ID })
	for i := range result.Connectors {
		result.Connectors[i].ZDiff = result.Connectors[i].Z - float64(v.Z)
	}
	catvol.Debugf("Node list for project %d at z %d: %d treenodes (%d backfilled), %d connectors\n",
		v.ProjectID, v.Z, len(result.Treenodes), len(missing), len(result.Connectors))
	return result, nil
}

// foldConnectors merges the per-link rows of each connector into one record.  Links
// with the presynaptic relation go to Pre, all others to Post.
func foldConnectors(rows []ConnectorRow, presynaptic int64) []Connector {
	var out []Connector
	index := make(map[int64]int)
	for _, row := range rows {
		i, found := index[row.ID]
		if !found {
			i = len(out)
			index[row.ID] = i
			out = append(out, Connector{
				ID:         row.ID,
				X:          row.X,
				Y:          row.Y,
				Z:          row.Z,
				Confidence: row.Confidence,
				UserID:     row.UserID,
				Type:       "connector",
			})
		}
		if row.TreenodeID == nil {
			continue
		}
		link := Link{TreenodeID: *row.TreenodeID}
		if row.TCConfidence != nil {
			link.Confidence = *row.TCConfidence
		}
		if row.RelationID != nil && *row.RelationID == presynaptic {
			out[i].Pre = append(out[i].Pre, link)
		} else {
			out[i].Post = append(out[i].Post, link)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
