/*
	Package nodes answers the spatial and hierarchy queries of the tracing overlay:
	the viewport node list, nearest treenode, skeleton ancestry, tree object paths and
	skeleton roots.
*/
package nodes

import (
	"context"
	"encoding/json"

	"github.com/janelia-flyem/catvol/catvol"
)

// Relation and class names that must exist in a project.
const (
	RelPresynapticTo  = "presynaptic_to"
	RelPostsynapticTo = "postsynaptic_to"
	RelModelOf        = "model_of"
	RelElementOf      = "element_of"
	RelPartOf         = "part_of"

	ClassSkeleton = "skeleton"
	ClassRoot     = "root"
)

// Treenode is a skeleton node as drawn by the overlay.
type Treenode struct {
	ID         int64   `json:"id"`
	ParentID   *int64  `json:"parentid"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence int     `json:"confidence"`
	UserID     int64   `json:"user_id"`
	Radius     float64 `json:"radius"`
	ZDiff      float64 `json:"z_diff"`
	SkeletonID int64   `json:"skeleton_id"`
	Type       string  `json:"type"`
}

// Location returns the treenode's world coordinate.
func (tn Treenode) Location() catvol.Point3d {
	return catvol.Point3d{X: tn.X, Y: tn.Y, Z: tn.Z}
}

// ConnectorRow is one row of a connector left-joined with one of its treenode links.
// The link fields are nil for a connector without links.
type ConnectorRow struct {
	ID           int64
	X, Y, Z      float64
	Confidence   int
	UserID       int64
	RelationID   *int64
	TreenodeID   *int64
	TCConfidence *int
}

// Link is a connector's edge to a treenode.
type Link struct {
	TreenodeID int64 `json:"tnid"`
	Confidence int   `json:"confidence"`
}

// Connector is a synapse site with its folded pre- and postsynaptic links.
type Connector struct {
	ID         int64   `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence int     `json:"confidence"`
	UserID     int64   `json:"user_id"`
	ZDiff      float64 `json:"z_diff"`
	Type       string  `json:"type"`
	Pre        []Link  `json:"pre,omitempty"`
	Post       []Link  `json:"post,omitempty"`
}

// Nodes is a node list result: treenodes by ascending id followed by connectors by
// ascending id.  It marshals as a single JSON array.
type Nodes struct {
	Treenodes  []Treenode
	Connectors []Connector
}

func (n Nodes) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(n.Treenodes)+len(n.Connectors))
	for i := range n.Treenodes {
		out = append(out, n.Treenodes[i])
	}
	for i := range n.Connectors {
		out = append(out, n.Connectors[i])
	}
	return json.Marshal(out)
}

// Box is a world-space query volume, inclusive on all sides.
type Box struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// Instance is a class instance reached through a class_instance_class_instance link.
type Instance struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Store is the relational source of treenodes, connectors and class instances.
type Store interface {
	// Relations maps relation names to ids for a project.
	Relations(ctx context.Context, projectID int64) (map[string]int64, error)

	// Classes maps class names to ids for a project.
	Classes(ctx context.Context, projectID int64) (map[string]int64, error)

	// TreenodesInBox returns at most limit treenodes inside the box, ordered by id.
	TreenodesInBox(ctx context.Context, projectID int64, box Box, limit int) ([]Treenode, error)

	// SkeletonTreenodes returns all treenodes of the given skeletons, ordered by id.
	SkeletonTreenodes(ctx context.Context, projectID int64, skeletonIDs ...int64) ([]Treenode, error)

	// TreenodesByID returns the treenodes with the given ids, ordered by id.
	TreenodesByID(ctx context.Context, projectID int64, ids []int64) ([]Treenode, error)

	// ConnectorsInBox returns at most limit connector rows inside the box, left-joined
	// with their treenode links and ordered by connector id then link id.
	ConnectorsInBox(ctx context.Context, projectID int64, box Box, limit int) ([]ConnectorRow, error)

	// LinkedFrom returns the instances b of links (a, relation, b), ordered by link id.
	LinkedFrom(ctx context.Context, projectID, relationID, instanceA int64) ([]Instance, error)

	// LinkedTo returns the instance ids a of links (a, relation, b), ordered by link id.
	LinkedTo(ctx context.Context, projectID, relationID, instanceB int64) ([]int64, error)
}

func requireNames(kind string, have map[string]int64, names ...string) error {
	for _, name := range names {
		if _, found := have[name]; !found {
			return catvol.NotFound("%s %q for this project", kind, name)
		}
	}
	return nil
}
