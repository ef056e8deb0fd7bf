package segment

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/componenttree"
	"github.com/janelia-flyem/catvol/storage"
)

// Service implements the segmentation operations over a relational Store and the
// component trees held in a key-value store.
type Service struct {
	db    Store
	nodes NodeStore
	kv    storage.Store
}

// NewService returns a Service.  nodes may be nil if skeleton initialization is not used.
func NewService(db Store, nodes NodeStore, kv storage.Store) *Service {
	return &Service{db: db, nodes: nodes, kv: kv}
}

func (s *Service) tree(projectID, stackID int64) *componenttree.Tree {
	return componenttree.New(s.kv, projectID, stackID)
}

func (s *Service) checkScope(ctx context.Context, scope Scope) (*catvol.Stack, error) {
	stack, err := s.db.Stack(ctx, scope.ProjectID, scope.StackID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Skeleton(ctx, scope.ProjectID, scope.SkeletonID); err != nil {
		return nil, err
	}
	return stack, nil
}

// SavedComponents returns the components of a skeleton on a section keyed by
// component id.
func (s *Service) SavedComponents(ctx context.Context, scope Scope) (map[int64]Component, error) {
	if _, err := s.checkScope(ctx, scope); err != nil {
		return nil, err
	}
	comps, err := s.db.Components(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Component, len(comps))
	for _, c := range comps {
		out[c.ComponentID] = c
	}
	return out, nil
}

// Selection is a component the user has selected for a skeleton on a section.
type Selection struct {
	ID        int64   `json:"id"`
	MinX      int32   `json:"minX"`
	MinY      int32   `json:"minY"`
	MaxX      int32   `json:"maxX"`
	MaxY      int32   `json:"maxY"`
	Threshold float64 `json:"threshold"`
}

// PutComponents makes the stored components of the scope equal to the selection.
// Components already stored are kept untouched, new ones are inserted with
// StatusSelected and stored ones missing from the selection are deleted, all in one
// transaction.  Bounding boxes of new components come from the component tree when
// the section is present there.
func (s *Service) PutComponents(ctx context.Context, scope Scope, userID int64, selection []Selection) (inserted, removed int, err error) {
	if _, err = s.checkScope(ctx, scope); err != nil {
		return
	}
	existing, err := s.db.Components(ctx, scope)
	if err != nil {
		return
	}
	stored := make(map[int64]bool, len(existing))
	for _, c := range existing {
		stored[c.ComponentID] = true
	}

	section, err := s.tree(scope.ProjectID, scope.StackID).Section(scope.Z)
	if catvol.IsNotFound(err) {
		section, err = nil, nil
	}
	if err != nil {
		return
	}

	active := make(map[int64]bool, len(selection))
	var insert []Component
	for _, sel := range selection {
		if active[sel.ID] {
			continue
		}
		active[sel.ID] = true
		if stored[sel.ID] {
			continue
		}
		c := Component{
			ProjectID:   scope.ProjectID,
			StackID:     scope.StackID,
			UserID:      userID,
			SkeletonID:  scope.SkeletonID,
			ComponentID: sel.ID,
			Z:           scope.Z,
			MinX:        sel.MinX,
			MinY:        sel.MinY,
			MaxX:        sel.MaxX,
			MaxY:        sel.MaxY,
			Threshold:   sel.Threshold,
			Status:      StatusSelected,
		}
		if section != nil {
			if sel.ID < 0 || sel.ID >= int64(section.NumComponents()) {
				return 0, 0, catvol.NotFound("component %d on section %d", sel.ID, scope.Z)
			}
			if bounds, ok := catvol.BoundsOf(section.PixelsOf(int(sel.ID))); ok {
				c.MinX, c.MinY, c.MaxX, c.MaxY = bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY
			}
		}
		if !c.Bounds().Valid() {
			return 0, 0, catvol.Invalid("components", "component %d has inverted box %s", sel.ID, c.Bounds())
		}
		insert = append(insert, c)
	}
	var remove []int64
	for _, c := range existing {
		if !active[c.ComponentID] {
			remove = append(remove, c.ID)
		}
	}
	if err = s.db.ReplaceComponents(ctx, insert, remove); err != nil {
		return
	}
	return len(insert), len(remove), nil
}

type sectionComponent struct {
	z  int32
	id int64
}

// InitializeComponents assigns to a skeleton, on each section holding one of its
// treenodes, the lowest-threshold component containing the treenode.  Components the
// skeleton already has are skipped.  New components get StatusAutoSelected.  It
// returns the number of components added.
func (s *Service) InitializeComponents(ctx context.Context, projectID, stackID, skeletonID, userID int64) (int, error) {
	if s.nodes == nil {
		return 0, fmt.Errorf("segmentation service has no treenode store")
	}
	stack, err := s.checkScope(ctx, Scope{ProjectID: projectID, StackID: stackID, SkeletonID: skeletonID})
	if err != nil {
		return 0, err
	}
	res := stack.Resolution
	if res.X <= 0 || res.Y <= 0 || res.Z <= 0 {
		return 0, catvol.Invalid("resolution", "stack %d has non-positive resolution %v", stackID, res)
	}
	existing, err := s.db.SkeletonComponents(ctx, projectID, stackID, skeletonID)
	if err != nil {
		return 0, err
	}
	have := make(map[sectionComponent]bool, len(existing))
	for _, c := range existing {
		have[sectionComponent{c.Z, c.ComponentID}] = true
	}
	locations, err := s.nodes.SkeletonLocations(ctx, projectID, skeletonID)
	if err != nil {
		return 0, err
	}

	timedLog := catvol.NewTimeLog()
	tree := s.tree(projectID, stackID)
	var insert []Component
	for _, loc := range locations {
		x, y, z := res.ToPixel(loc)
		matches, err := tree.FindComponentsAt(x, y, z, 1)
		if catvol.IsNotFound(err) {
			catvol.Debugf("No component tree section %d for treenode at %v\n", z, loc)
			continue
		}
		if err != nil {
			return 0, err
		}
		if len(matches) == 0 {
			catvol.Debugf("No component found for treenode at %v\n", loc)
			continue
		}
		m := matches[0]
		key := sectionComponent{z, m.ID}
		if have[key] {
			continue
		}
		have[key] = true
		insert = append(insert, Component{
			ProjectID:   projectID,
			StackID:     stackID,
			UserID:      userID,
			SkeletonID:  skeletonID,
			ComponentID: m.ID,
			Z:           z,
			MinX:        m.MinX,
			MinY:        m.MinY,
			MaxX:        m.MaxX,
			MaxY:        m.MaxY,
			Threshold:   m.Threshold,
			Status:      StatusAutoSelected,
		})
	}
	if len(insert) > 0 {
		if err := s.db.ReplaceComponents(ctx, insert, nil); err != nil {
			return 0, err
		}
	}
	timedLog.Infof("Initialized %d components for skeleton %d from %d treenodes", len(insert), skeletonID, len(locations))
	return len(insert), nil
}
