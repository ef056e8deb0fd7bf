package segment

import (
	"context"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
)

// DrawingsByComponent returns the drawings of a skeleton's component on a section.
func (s *Service) DrawingsByComponent(ctx context.Context, scope Scope, componentID int64) ([]Drawing, error) {
	if _, err := s.checkScope(ctx, scope); err != nil {
		return nil, err
	}
	return s.db.Drawings(ctx, DrawingFilter{
		ProjectID:   scope.ProjectID,
		StackID:     scope.StackID,
		Z:           scope.Z,
		SkeletonID:  &scope.SkeletonID,
		ComponentID: &componentID,
		Kind:        ComponentDrawings,
	})
}

// DrawingsByView returns the free drawings of a section.
func (s *Service) DrawingsByView(ctx context.Context, projectID, stackID int64, z int32) ([]Drawing, error) {
	if _, err := s.db.Stack(ctx, projectID, stackID); err != nil {
		return nil, err
	}
	return s.db.Drawings(ctx, DrawingFilter{
		ProjectID: projectID,
		StackID:   stackID,
		Z:         z,
		Kind:      FreeDrawings,
	})
}

// PutDrawing validates and stores a new drawing with StatusSelected, returning its id.
func (s *Service) PutDrawing(ctx context.Context, d *Drawing) (int64, error) {
	stack, err := s.db.Stack(ctx, d.ProjectID, d.StackID)
	if err != nil {
		return 0, err
	}
	if !d.Type.Known() {
		return 0, catvol.Invalid("type", "unknown drawing type %d", int(d.Type))
	}
	if strings.TrimSpace(d.SVG) == "" {
		return 0, catvol.Invalid("svg", "drawing has no svg")
	}
	bounds := catvol.Rect{MinX: d.MinX, MinY: d.MinY, MaxX: d.MaxX, MaxY: d.MaxY}
	if !bounds.Valid() {
		return 0, catvol.Invalid("drawing", "inverted bounding box %s", bounds)
	}
	if d.Z < 0 || d.Z >= stack.Dimension.Z {
		return 0, catvol.Invalid("z", "section %d outside stack of depth %d", d.Z, stack.Dimension.Z)
	}
	if d.SkeletonID != nil {
		if err := s.db.Skeleton(ctx, d.ProjectID, *d.SkeletonID); err != nil {
			return 0, err
		}
	}
	d.Status = StatusSelected
	id, err := s.db.InsertDrawing(ctx, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

// DeleteDrawing removes a drawing.
func (s *Service) DeleteDrawing(ctx context.Context, id int64) error {
	return s.db.DeleteDrawing(ctx, id)
}
