package volume

import (
	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
)

func readPlane(store storage.Store, ctx storage.Context, path string) ([]byte, error) {
	data, err := store.Get(ctx, path)
	if err != nil {
		return nil, catvol.StoreErr("get "+path, err)
	}
	if data == nil {
		return nil, catvol.NotFound("dataset %q in volume %s", path, ctx.Volume)
	}
	return data, nil
}

// ReadGray returns the 8-bit plane stored at path, or a NotFoundError.
func ReadGray(store storage.Store, ctx storage.Context, path string) (*catvol.Gray8, error) {
	data, err := readPlane(store, ctx, path)
	if err != nil {
		return nil, err
	}
	g, err := DecodeGray(data)
	if err != nil {
		return nil, catvol.StoreErr("decode "+path, err)
	}
	return g, nil
}

// ReadLabels returns the label plane stored at path, or a NotFoundError.
func ReadLabels(store storage.Store, ctx storage.Context, path string) (*catvol.LabelPlane, error) {
	data, err := readPlane(store, ctx, path)
	if err != nil {
		return nil, err
	}
	p, err := DecodeLabels(data)
	if err != nil {
		return nil, catvol.StoreErr("decode "+path, err)
	}
	return p, nil
}

// PutImageSection stores section z of an image dataset of a stack's raw volume and
// gives the volume a new generation.
func PutImageSection(store storage.Store, locks *Locker, projectID, stackID int64, hdf5Path string, scale int, z int32, img *catvol.Gray8) (*Manifest, error) {
	if scale < 0 || z < 0 {
		return nil, catvol.Invalid("scale", "scale %d and section %d must be non-negative", scale, z)
	}
	ctx := RawContext(projectID, stackID)
	path := ImagePath(hdf5Path, scale, z)
	data, err := EncodeGray(img)
	if err != nil {
		return nil, err
	}
	catvol.Debugf("Storing %d x %d section at %s (%s, %s in memory)\n", img.Width, img.Height, path,
		humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(size.Of(img))))

	unlock := locks.Lock(ctx.Volume)
	defer unlock()
	if err := store.Put(ctx, path, data); err != nil {
		return nil, catvol.StoreErr("put "+path, err)
	}
	return Touch(store, ctx, scale, z)
}
