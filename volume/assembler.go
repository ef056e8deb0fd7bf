package volume

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/componenttree"
	"github.com/janelia-flyem/catvol/raster"
	"github.com/janelia-flyem/catvol/segment"
	"github.com/janelia-flyem/catvol/storage"

	"golang.org/x/sync/errgroup"
)

// Assembler builds segmentation volumes from the stored components and drawings.
type Assembler struct {
	db      segment.Store
	kv      storage.Store
	locks   *Locker
	workers int
}

// NewAssembler returns an Assembler building up to workers sections concurrently.  A
// non-positive workers uses the number of CPUs.
func NewAssembler(db segment.Store, kv storage.Store, locks *Locker, workers int) *Assembler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Assembler{db: db, kv: kv, locks: locks, workers: workers}
}

// section holds the planes of one z being assembled.
type section struct {
	z          int32
	components *catvol.LabelPlane
	skeletons  *catvol.LabelPlane
	drawings   *catvol.LabelPlane
	free       map[catvol.DrawingType]*catvol.LabelPlane
}

func newSection(z int32, width, height int) *section {
	s := &section{
		z:          z,
		components: catvol.NewLabelPlane(width, height),
		skeletons:  catvol.NewLabelPlane(width, height),
		drawings:   catvol.NewLabelPlane(width, height),
		free:       make(map[catvol.DrawingType]*catvol.LabelPlane),
	}
	for _, t := range catvol.DrawingTypes() {
		s.free[t] = catvol.NewLabelPlane(width, height)
	}
	return s
}

func (s *section) planes() map[string]*catvol.LabelPlane {
	planes := map[string]*catvol.LabelPlane{
		ChannelComponents:        s.components,
		ChannelSkeletons:         s.skeletons,
		ChannelComponentDrawings: s.drawings,
	}
	for t, p := range s.free {
		planes[t.ChannelName()] = p
	}
	return planes
}

// BuildVolume rebuilds the segmentation volume of a stack from scratch.  Sections
// are written to a staging namespace and replace the live volume only once all of
// them succeed, so a failed build leaves the previous volume untouched.  Every
// non-broken section gets a components, skeletons and component_drawings plane plus
// one plane per drawing type.  Component planes are only filled when skeletonID is
// given.  Broken sections get no planes at all.
func (a *Assembler) BuildVolume(ctx context.Context, projectID, stackID int64, skeletonID *int64) (*Manifest, error) {
	stack, err := a.db.Stack(ctx, projectID, stackID)
	if err != nil {
		return nil, err
	}
	if skeletonID != nil {
		if err := a.db.Skeleton(ctx, projectID, *skeletonID); err != nil {
			return nil, err
		}
	}
	if stack.Dimension.X <= 0 || stack.Dimension.Y <= 0 {
		return nil, catvol.Invalid("dimension", "stack %d has empty extent %d x %d", stackID, stack.Dimension.X, stack.Dimension.Y)
	}
	vctx := SegmentationContext(projectID, stackID)
	timedLog := catvol.NewTimeLog()

	unlock := a.locks.Lock(vctx.Volume)
	defer unlock()

	staging := stagingContext(vctx)
	if err := a.kv.DeletePrefix(staging, ""); err != nil {
		return nil, catvol.StoreErr("clear "+staging.Volume, err)
	}

	zs := stack.Sections()
	tree := componenttree.New(a.kv, projectID, stackID)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, z := range zs {
		z := z
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := a.assembleSection(gctx, stack, tree, skeletonID, z)
			if err != nil {
				return fmt.Errorf("section %d: %w", z, err)
			}
			return a.persist(staging, s)
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := a.kv.DeletePrefix(staging, ""); cerr != nil {
			catvol.Errorf("Couldn't clear %s after failed build: %v\n", staging.Volume, cerr)
		}
		return nil, err
	}
	if err := a.promote(staging, vctx); err != nil {
		return nil, err
	}

	m := &Manifest{
		Generation: NewGeneration(),
		Scales:     []int{0},
		Sections:   zs,
		BuiltAt:    time.Now(),
		SkeletonID: skeletonID,
	}
	if err := WriteManifest(a.kv, vctx, m); err != nil {
		return nil, err
	}
	timedLog.Infof("Built %s with %d sections of %d x %d", vctx.Volume, len(zs), stack.Dimension.X, stack.Dimension.Y)

	activity := map[string]interface{}{
		"Action":     "build-volume",
		"Volume":     vctx.Volume,
		"Project":    projectID,
		"Stack":      stackID,
		"Sections":   len(zs),
		"Generation": m.Generation,
	}
	if skeletonID != nil {
		activity["Skeleton"] = *skeletonID
	}
	storage.LogActivityToKafka(activity)
	return m, nil
}

func (a *Assembler) assembleSection(ctx context.Context, stack *catvol.Stack, tree *componenttree.Tree, skeletonID *int64, z int32) (*section, error) {
	s := newSection(z, int(stack.Dimension.X), int(stack.Dimension.Y))
	if skeletonID != nil {
		if err := a.stampComponents(ctx, s, stack, tree, *skeletonID); err != nil {
			return nil, err
		}
		drawings, err := a.db.Drawings(ctx, segment.DrawingFilter{
			ProjectID:  stack.ProjectID,
			StackID:    stack.ID,
			Z:          z,
			SkeletonID: skeletonID,
			Kind:       segment.ComponentDrawings,
		})
		if err != nil {
			return nil, err
		}
		for _, d := range drawings {
			if err := stampDrawing(s.drawings, d); err != nil {
				return nil, err
			}
		}
	}

	free, err := a.db.Drawings(ctx, segment.DrawingFilter{
		ProjectID: stack.ProjectID,
		StackID:   stack.ID,
		Z:         z,
		Kind:      segment.FreeDrawings,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range free {
		plane, found := s.free[d.Type]
		if !found {
			catvol.Warningf("Skipping free drawing %d on section %d with unknown type %d\n", d.ID, z, int(d.Type))
			continue
		}
		if err := stampDrawing(plane, d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *Assembler) stampComponents(ctx context.Context, s *section, stack *catvol.Stack, tree *componenttree.Tree, skeletonID int64) error {
	comps, err := a.db.Components(ctx, segment.Scope{
		ProjectID:  stack.ProjectID,
		StackID:    stack.ID,
		SkeletonID: skeletonID,
		Z:          s.z,
	})
	if err != nil {
		return err
	}
	for _, c := range comps {
		mask, err := tree.ExtractMask(c.ComponentID, s.z)
		if catvol.IsNotFound(err) {
			catvol.Warningf("Skipping component %d of skeleton %d on section %d: %v\n", c.ComponentID, skeletonID, s.z, err)
			continue
		}
		if err != nil {
			return err
		}
		for my := 0; my < mask.Height; my++ {
			py := int(mask.Bounds.MinY) + my
			for mx := 0; mx < mask.Width; mx++ {
				if mask.At(mx, my) == 0 {
					continue
				}
				px := int(mask.Bounds.MinX) + mx
				if !s.skeletons.InBounds(px, py) {
					continue
				}
				s.skeletons.Set(px, py, skeletonID)
				s.components.Set(px, py, c.ComponentID)
			}
		}
	}
	return nil
}

// stampDrawing composites a drawing, skipping ones whose geometry cannot be rendered.
func stampDrawing(plane *catvol.LabelPlane, d segment.Drawing) error {
	_, err := raster.Stamp(plane, raster.Drawing{
		ID:   d.ID,
		MinX: d.MinX,
		MinY: d.MinY,
		MaxX: d.MaxX,
		MaxY: d.MaxY,
		SVG:  d.SVG,
	})
	if catvol.IsValidation(err) {
		catvol.Warningf("Skipping drawing %d on section %d: %v\n", d.ID, d.Z, err)
		return nil
	}
	return err
}

// stagingContext is the namespace a volume is built in before it goes live.
func stagingContext(vctx storage.Context) storage.Context {
	return storage.NewContext(vctx.Volume + "_staging")
}

// promote replaces everything in dst with the contents of src and empties src.
// Callers hold the volume's write lock.
func (a *Assembler) promote(src, dst storage.Context) error {
	paths, err := a.kv.Keys(src, "")
	if err != nil {
		return catvol.StoreErr("list "+src.Volume, err)
	}
	if err := a.kv.DeletePrefix(dst, ""); err != nil {
		return catvol.StoreErr("clear "+dst.Volume, err)
	}
	for _, path := range paths {
		data, err := a.kv.Get(src, path)
		if err != nil {
			return catvol.StoreErr("read "+path+" of "+src.Volume, err)
		}
		if err := a.kv.Put(dst, path, data); err != nil {
			return catvol.StoreErr("write "+path+" of "+dst.Volume, err)
		}
	}
	return catvol.StoreErr("clear "+src.Volume, a.kv.DeletePrefix(src, ""))
}

func (a *Assembler) persist(vctx storage.Context, s *section) error {
	batch := a.kv.NewBatch(vctx)
	for channel, plane := range s.planes() {
		data, err := EncodeLabels(plane)
		if err != nil {
			return fmt.Errorf("encode %s of section %d: %v", channel, s.z, err)
		}
		batch.Put(SectionPath(0, s.z, channel), data)
	}
	return catvol.StoreErr(fmt.Sprintf("write section %d of %s", s.z, vctx.Volume), batch.Commit())
}
