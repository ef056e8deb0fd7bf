package nodes

import (
	"context"

	"github.com/janelia-flyem/catvol/catvol"
)

// MaxAncestryDepth bounds every part_of climb through the class instance hierarchy.
const MaxAncestryDepth = 10

// NearestNode returns the treenode closest to a world location among the nodes of a
// skeleton and of all skeletons modeling a neuron.  Non-positive ids are unset; at
// least one must be given.
func NearestNode(ctx context.Context, store Store, projectID int64, at catvol.Point3d, skeletonID, neuronID int64) (*Treenode, error) {
	if skeletonID <= 0 && neuronID <= 0 {
		return nil, catvol.Invalid("skeleton_id", "either a skeleton or a neuron must be given")
	}
	relations, err := store.Relations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := requireNames("relation", relations, RelPartOf, RelModelOf); err != nil {
		return nil, err
	}
	var skeletons []int64
	if skeletonID > 0 {
		skeletons = append(skeletons, skeletonID)
	}
	if neuronID > 0 {
		modeledBy, err := store.LinkedTo(ctx, projectID, relations[RelModelOf], neuronID)
		if err != nil {
			return nil, err
		}
		skeletons = append(skeletons, modeledBy...)
	}
	var treenodes []Treenode
	if len(skeletons) > 0 {
		if treenodes, err = store.SkeletonTreenodes(ctx, projectID, skeletons...); err != nil {
			return nil, err
		}
	}
	var nearest *Treenode
	var best float64
	for i := range treenodes {
		d := treenodes[i].Location().DistanceSquared(at)
		if nearest == nil || d < best {
			nearest, best = &treenodes[i], d
		}
	}
	if nearest == nil {
		return nil, catvol.NotFound("treenodes for skeleton %d or neuron %d", skeletonID, neuronID)
	}
	nearest.Type = "treenode"
	return nearest, nil
}

// SkeletonAncestry returns the neuron a skeleton models followed by the chain of
// instances it is part of, nearest first.  A chain longer than MaxAncestryDepth
// returns CycleSuspected.
func SkeletonAncestry(ctx context.Context, store Store, projectID, skeletonID int64) ([]Instance, error) {
	relations, err := store.Relations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := requireNames("relation", relations, RelModelOf, RelPartOf); err != nil {
		return nil, err
	}
	neurons, err := store.LinkedFrom(ctx, projectID, relations[RelModelOf], skeletonID)
	if err != nil {
		return nil, err
	}
	switch len(neurons) {
	case 0:
		return nil, catvol.NotFound("neuron modeled by skeleton %d", skeletonID)
	case 1:
	default:
		return nil, catvol.Invalid("skeleton_id", "more than one neuron is modeled by skeleton %d", skeletonID)
	}
	neuron := neurons[0]
	neuron.Class = "neuron"
	ancestry := []Instance{neuron}

	current := neuron.ID
	for depth := 0; ; depth++ {
		parents, err := store.LinkedFrom(ctx, projectID, relations[RelPartOf], current)
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 {
			return ancestry, nil
		}
		if len(parents) > 1 {
			return nil, catvol.Invalid("skeleton_id", "class instance %d is part of more than one instance", current)
		}
		if depth == MaxAncestryDepth {
			return nil, catvol.CycleSuspected{Start: neuron.ID, Depth: MaxAncestryDepth}
		}
		ancestry = append(ancestry, parents[0])
		current = parents[0].ID
	}
}

// TreeObjectPath returns the instance ids from the hierarchy root down to the skeleton.
func TreeObjectPath(ctx context.Context, store Store, projectID, skeletonID int64) ([]int64, error) {
	relations, err := store.Relations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := requireNames("relation", relations, RelModelOf, RelPartOf); err != nil {
		return nil, err
	}
	neurons, err := store.LinkedFrom(ctx, projectID, relations[RelModelOf], skeletonID)
	if err != nil {
		return nil, err
	}
	if len(neurons) == 0 {
		return nil, catvol.NotFound("neuron for the skeleton with id %d", skeletonID)
	}
	path := []int64{skeletonID, neurons[0].ID}
	for depth := 0; ; depth++ {
		if depth == MaxAncestryDepth {
			return nil, catvol.CycleSuspected{Start: neurons[0].ID, Depth: MaxAncestryDepth}
		}
		last := path[len(path)-1]
		parents, err := store.LinkedFrom(ctx, projectID, relations[RelPartOf], last)
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 {
			return nil, catvol.NotFound("parent instance for instance with id %d", last)
		}
		path = append(path, parents[0].ID)
		if parents[0].Class == ClassRoot {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// SkeletonRoot returns the parentless treenode of a skeleton.
func SkeletonRoot(ctx context.Context, store Store, projectID, skeletonID int64) (*Treenode, error) {
	treenodes, err := store.SkeletonTreenodes(ctx, projectID, skeletonID)
	if err != nil {
		return nil, err
	}
	for i := range treenodes {
		if treenodes[i].ParentID == nil {
			root := treenodes[i]
			root.Type = "treenode"
			return &root, nil
		}
	}
	return nil, catvol.NotFound("root node of skeleton %d", skeletonID)
}
