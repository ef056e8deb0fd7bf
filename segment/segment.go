/*
	Package segment holds the manual segmentation records of a stack: the components a
	user has assigned to a skeleton on each section and the vector drawings painted
	over them.  Persistence is behind the Store interface.
*/
package segment

import (
	"context"

	"github.com/janelia-flyem/catvol/catvol"
)

const (
	// StatusSelected marks a component or drawing created by a user action.
	StatusSelected = 1

	// StatusAutoSelected marks a component chosen by skeleton initialization.
	StatusAutoSelected = 5
)

// Component is a component-tree entry assigned to a skeleton on one section.
type Component struct {
	ID          int64   `json:"-"`
	ProjectID   int64   `json:"-"`
	StackID     int64   `json:"-"`
	UserID      int64   `json:"-"`
	SkeletonID  int64   `json:"skeletonId"`
	ComponentID int64   `json:"id"`
	Z           int32   `json:"z"`
	MinX        int32   `json:"minX"`
	MinY        int32   `json:"minY"`
	MaxX        int32   `json:"maxX"`
	MaxY        int32   `json:"maxY"`
	Threshold   float64 `json:"threshold"`
	Status      int     `json:"status"`
}

// Bounds returns the component's bounding box.
func (c Component) Bounds() catvol.Rect {
	return catvol.Rect{MinX: c.MinX, MinY: c.MinY, MaxX: c.MaxX, MaxY: c.MaxY}
}

// Drawing is a paint tool annotation.  A drawing without a component is free and
// belongs to the label channel of its type.
type Drawing struct {
	ID          int64              `json:"id"`
	ProjectID   int64              `json:"-"`
	StackID     int64              `json:"-"`
	UserID      int64              `json:"-"`
	SkeletonID  *int64             `json:"skeletonId"`
	ComponentID *int64             `json:"componentId"`
	Z           int32              `json:"z"`
	MinX        int32              `json:"minX"`
	MinY        int32              `json:"minY"`
	MaxX        int32              `json:"maxX"`
	MaxY        int32              `json:"maxY"`
	Type        catvol.DrawingType `json:"type"`
	SVG         string             `json:"svg"`
	Status      int                `json:"status"`
}

// Free returns true if the drawing is not bound to a component.
func (d Drawing) Free() bool {
	return d.ComponentID == nil
}

// Scope selects the components of one skeleton on one section.
type Scope struct {
	ProjectID  int64
	StackID    int64
	SkeletonID int64
	Z          int32
}

// DrawingKind restricts a drawing query by component binding.
type DrawingKind uint8

const (
	AnyDrawing DrawingKind = iota
	FreeDrawings
	ComponentDrawings
)

// DrawingFilter selects drawings on one section.  Nil ids are not constrained.
type DrawingFilter struct {
	ProjectID   int64
	StackID     int64
	Z           int32
	SkeletonID  *int64
	ComponentID *int64
	Kind        DrawingKind
}

// StackStore looks up stack metadata.
type StackStore interface {
	// Stack returns a NotFoundError if the project has no such stack.
	Stack(ctx context.Context, projectID, stackID int64) (*catvol.Stack, error)
}

// Store persists components and drawings.
type Store interface {
	StackStore

	// Skeleton returns a NotFoundError if the project has no such skeleton.
	Skeleton(ctx context.Context, projectID, skeletonID int64) error

	// Components returns the components of a scope ordered by component id.
	Components(ctx context.Context, scope Scope) ([]Component, error)

	// SkeletonComponents returns the components of a skeleton on every section.
	SkeletonComponents(ctx context.Context, projectID, stackID, skeletonID int64) ([]Component, error)

	// ReplaceComponents inserts and deletes (by row id) in one transaction.
	ReplaceComponents(ctx context.Context, insert []Component, remove []int64) error

	// Drawings returns the matching drawings ordered by id.
	Drawings(ctx context.Context, filter DrawingFilter) ([]Drawing, error)

	// InsertDrawing stores d and returns its new id.
	InsertDrawing(ctx context.Context, d *Drawing) (int64, error)

	// DeleteDrawing returns a NotFoundError if there is no drawing with the id.
	DeleteDrawing(ctx context.Context, id int64) error
}

// NodeStore provides the treenode locations of a skeleton.
type NodeStore interface {
	SkeletonLocations(ctx context.Context, projectID, skeletonID int64) ([]catvol.Point3d, error)
}
