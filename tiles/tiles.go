/*
	Package tiles serves image tiles cut from stored volume sections and writes painted
	label tiles back.

	Raw tiles come from <hdf5_path>/scale/<s>/data/<z> of the stack's image volume.
	Segmentation tiles come from scale/<s>/section/<z>/<type> of the assembled
	segmentation volume and are binarized so any label shows as 255.  Tiles extending
	past a section are zero-padded.
*/
package tiles

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"
	"github.com/janelia-flyem/catvol/volume"

	"github.com/coocood/freecache"
	"github.com/golang/groupcache/singleflight"
)

// SegmentationSource is the hdf5_path value selecting the segmentation volume.
const SegmentationSource = "segmentation_file"

// PutTileResponse is returned on a successful label write.
const PutTileResponse = "Image pushed to HDF5."

// MinCacheBytes is the smallest tile cache that will be created.
const MinCacheBytes = 512 * catvol.Kilo

// MaxTileSize is the largest tile width or height served or written.
const MaxTileSize = 4096

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return catvol.Invalid("width", "tile size %d x %d must be positive", width, height)
	}
	if width > MaxTileSize || height > MaxTileSize {
		return catvol.Invalid("width", "tile size %d x %d exceeds %d x %d", width, height, MaxTileSize, MaxTileSize)
	}
	return nil
}

// Request selects a tile.  Row and Col are accepted from clients and ignored.
type Request struct {
	ProjectID int64
	StackID   int64
	Scale     int
	Width     int
	Height    int
	X         int
	Y         int
	Z         int32
	Type      string // segmentation channel
	HDF5Path  string
	Format    string // "png", "jpg" or "jpg:<quality>"
	Row, Col  string
}

// Segmentation returns true if the tile is cut from the segmentation volume.
func (r Request) Segmentation() bool {
	return r.HDF5Path == SegmentationSource
}

func (r Request) validate() error {
	if err := checkSize(r.Width, r.Height); err != nil {
		return err
	}
	if r.Scale < 0 {
		return catvol.Invalid("scale", "must be non-negative, got %d", r.Scale)
	}
	if r.Z < 0 {
		return catvol.Invalid("z", "must be non-negative, got %d", r.Z)
	}
	if r.Segmentation() && r.Type == "" {
		return catvol.Invalid("type", "segmentation tiles need a channel")
	}
	return nil
}

func (r Request) context() storage.Context {
	if r.Segmentation() {
		return volume.SegmentationContext(r.ProjectID, r.StackID)
	}
	return volume.RawContext(r.ProjectID, r.StackID)
}

func (r Request) path() string {
	if r.Segmentation() {
		return volume.SectionPath(r.Scale, r.Z, r.Type)
	}
	return volume.ImagePath(r.HDF5Path, r.Scale, r.Z)
}

// Server cuts tiles from a key-value store.
type Server struct {
	kv    storage.Store
	locks *volume.Locker
	cache *freecache.Cache
	group singleflight.Group
}

// NewServer returns a tile server caching up to cacheBytes of encoded tiles.  A
// cacheBytes below MinCacheBytes disables the cache.
func NewServer(kv storage.Store, locks *volume.Locker, cacheBytes int) *Server {
	s := &Server{kv: kv, locks: locks}
	if cacheBytes >= MinCacheBytes {
		s.cache = freecache.NewCache(cacheBytes)
	}
	return s
}

// CacheStats returns the hit and miss counts of the tile cache.
func (s *Server) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.HitCount(), s.cache.MissCount()
}

// GetTile returns the encoded tile and its content type.
func (s *Server) GetTile(ctx context.Context, req Request) ([]byte, string, error) {
	if err := req.validate(); err != nil {
		return nil, "", err
	}
	format := strings.ToLower(req.Format)
	contentType, err := catvol.ImageContentType(format)
	if err != nil {
		return nil, "", err
	}
	timedLog := catvol.NewTimeLog()
	vctx := req.context()
	unlock := s.locks.RLock(vctx.Volume)
	defer unlock()

	generation, err := volume.Generation(s.kv, vctx)
	if err != nil {
		return nil, "", err
	}
	key := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d|%s", vctx.Volume, generation, req.path(), req.X, req.Y, req.Width, req.Height, format)
	if s.cache != nil {
		if data, err := s.cache.Get([]byte(key)); err == nil {
			return data, contentType, nil
		}
	}
	v, err := s.group.Do(key, func() (interface{}, error) {
		return s.render(req, format)
	})
	if err != nil {
		return nil, "", err
	}
	data := v.([]byte)
	if s.cache != nil {
		if err := s.cache.Set([]byte(key), data, 0); err != nil {
			catvol.Debugf("Tile %s not cached: %v\n", key, err)
		}
	}
	timedLog.Debugf("tile %s (%d x %d at %d,%d)", req.path(), req.Width, req.Height, req.X, req.Y)
	return data, contentType, nil
}

func (s *Server) render(req Request, format string) ([]byte, error) {
	vctx := req.context()
	var tile *catvol.Gray8
	if req.Segmentation() {
		labels, err := volume.ReadLabels(s.kv, vctx, req.path())
		if err != nil {
			return nil, err
		}
		tile = labels.Binarized(req.X, req.Y, req.Width, req.Height)
	} else {
		section, err := volume.ReadGray(s.kv, vctx, req.path())
		if err != nil {
			return nil, err
		}
		tile = section.Crop(req.X, req.Y, req.Width, req.Height)
	}
	var buf bytes.Buffer
	if err := catvol.EncodeImage(&buf, tile.Image(), format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PutRequest writes a painted tile into the label dataset.  Image is a base64 PNG,
// optionally as a data URL.
type PutRequest struct {
	ProjectID int64
	StackID   int64
	Scale     int
	Width     int
	Height    int
	X         int
	Y         int
	Z         int32
	Image     string
	Row, Col  string
}

// PutTile writes the red channel of the image into /labels at [y:y+h, x:x+w] of
// section z.  A missing label section is created with the size of the raw section.
func (s *Server) PutTile(ctx context.Context, req PutRequest) (string, error) {
	if err := checkSize(req.Width, req.Height); err != nil {
		return "", err
	}
	if req.Scale < 0 || req.Z < 0 {
		return "", catvol.Invalid("z", "scale %d and section %d must be non-negative", req.Scale, req.Z)
	}
	img, _, err := catvol.ImageFromBase64(req.Image)
	if err != nil {
		return "", err
	}
	if b := img.Bounds(); b.Dx() != req.Width || b.Dy() != req.Height {
		return "", catvol.Invalid("image", "image is %d x %d, expected %d x %d", b.Dx(), b.Dy(), req.Width, req.Height)
	}
	red := catvol.RedChannel(img)

	vctx := volume.RawContext(req.ProjectID, req.StackID)
	unlock := s.locks.Lock(vctx.Volume)
	defer unlock()

	path := volume.ImagePath(volume.LabelsPath, req.Scale, req.Z)
	labels, err := volume.ReadGray(s.kv, vctx, path)
	if catvol.IsNotFound(err) {
		raw, rawErr := volume.ReadGray(s.kv, vctx, volume.ImagePath("/", req.Scale, req.Z))
		if rawErr != nil {
			return "", rawErr
		}
		labels, err = catvol.NewGray8(raw.Width, raw.Height), nil
	}
	if err != nil {
		return "", err
	}
	labels.Paste(red, req.X, req.Y)
	data, err := volume.EncodeGray(labels)
	if err != nil {
		return "", err
	}
	if err := s.kv.Put(vctx, path, data); err != nil {
		return "", catvol.StoreErr("put "+path, err)
	}
	m, err := volume.Touch(s.kv, vctx, req.Scale, req.Z)
	if err != nil {
		return "", err
	}
	storage.LogActivityToKafka(map[string]interface{}{
		"Action":     "put-tile",
		"Volume":     vctx.Volume,
		"Scale":      req.Scale,
		"Z":          req.Z,
		"X":          req.X,
		"Y":          req.Y,
		"Width":      req.Width,
		"Height":     req.Height,
		"Generation": m.Generation,
	})
	return PutTileResponse, nil
}
