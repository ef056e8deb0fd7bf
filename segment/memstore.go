package segment

import (
	"context"
	"sort"
	"sync"

	"github.com/janelia-flyem/catvol/catvol"
)

// MemStore is an in-memory Store and NodeStore for tools and tests.
type MemStore struct {
	mu         sync.RWMutex
	stacks     map[[2]int64]catvol.Stack
	skeletons  map[[2]int64][]catvol.Point3d
	components map[int64]Component
	drawings   map[int64]Drawing
	lastID     int64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		stacks:     make(map[[2]int64]catvol.Stack),
		skeletons:  make(map[[2]int64][]catvol.Point3d),
		components: make(map[int64]Component),
		drawings:   make(map[int64]Drawing),
	}
}

// AddStack registers a stack under its project.
func (m *MemStore) AddStack(stack catvol.Stack) {
	m.mu.Lock()
	m.stacks[[2]int64{stack.ProjectID, stack.ID}] = stack
	m.mu.Unlock()
}

// AddSkeleton registers a skeleton and its treenode locations.
func (m *MemStore) AddSkeleton(projectID, skeletonID int64, locations ...catvol.Point3d) {
	m.mu.Lock()
	m.skeletons[[2]int64{projectID, skeletonID}] = locations
	m.mu.Unlock()
}

func (m *MemStore) Stack(ctx context.Context, projectID, stackID int64) (*catvol.Stack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stack, found := m.stacks[[2]int64{projectID, stackID}]
	if !found {
		return nil, catvol.NotFound("stack %d of project %d", stackID, projectID)
	}
	return &stack, nil
}

func (m *MemStore) Skeleton(ctx context.Context, projectID, skeletonID int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, found := m.skeletons[[2]int64{projectID, skeletonID}]; !found {
		return catvol.NotFound("skeleton %d of project %d", skeletonID, projectID)
	}
	return nil
}

func (m *MemStore) SkeletonLocations(ctx context.Context, projectID, skeletonID int64) ([]catvol.Point3d, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locs, found := m.skeletons[[2]int64{projectID, skeletonID}]
	if !found {
		return nil, catvol.NotFound("skeleton %d of project %d", skeletonID, projectID)
	}
	return append([]catvol.Point3d(nil), locs...), nil
}

func (m *MemStore) filterComponents(keep func(Component) bool) []Component {
	var out []Component
	for _, c := range m.components {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].ComponentID < out[j].ComponentID
	})
	return out
}

func (m *MemStore) Components(ctx context.Context, scope Scope) ([]Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterComponents(func(c Component) bool {
		return c.ProjectID == scope.ProjectID && c.StackID == scope.StackID &&
			c.SkeletonID == scope.SkeletonID && c.Z == scope.Z
	}), nil
}

func (m *MemStore) SkeletonComponents(ctx context.Context, projectID, stackID, skeletonID int64) ([]Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterComponents(func(c Component) bool {
		return c.ProjectID == projectID && c.StackID == stackID && c.SkeletonID == skeletonID
	}), nil
}

func (m *MemStore) ReplaceComponents(ctx context.Context, insert []Component, remove []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range remove {
		if _, found := m.components[id]; !found {
			return catvol.NotFound("component row %d", id)
		}
	}
	for _, id := range remove {
		delete(m.components, id)
	}
	for _, c := range insert {
		m.lastID++
		c.ID = m.lastID
		m.components[c.ID] = c
	}
	return nil
}

func (m *MemStore) Drawings(ctx context.Context, f DrawingFilter) ([]Drawing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Drawing
	for _, d := range m.drawings {
		if d.ProjectID != f.ProjectID || d.StackID != f.StackID || d.Z != f.Z {
			continue
		}
		switch {
		case f.Kind == FreeDrawings && !d.Free():
			continue
		case f.Kind == ComponentDrawings && d.Free():
			continue
		case f.SkeletonID != nil && (d.SkeletonID == nil || *d.SkeletonID != *f.SkeletonID):
			continue
		case f.ComponentID != nil && (d.ComponentID == nil || *d.ComponentID != *f.ComponentID):
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) InsertDrawing(ctx context.Context, d *Drawing) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	stored := *d
	stored.ID = m.lastID
	m.drawings[stored.ID] = stored
	return stored.ID, nil
}

func (m *MemStore) DeleteDrawing(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.drawings[id]; !found {
		return catvol.NotFound("drawing %d", id)
	}
	delete(m.drawings, id)
	return nil
}
