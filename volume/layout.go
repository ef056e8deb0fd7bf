/*
	Package volume persists section planes of project/stack volumes and assembles the
	segmentation volume from components and drawings.

	Each volume is one storage namespace (see catvol.VolumeName):

		<p>_<s>               raw images and labels:  <hdf5_path>/scale/<level>/data/<z>
		<p>_<s>_segmentation  assembled labels:       scale/<level>/section/<z>/<channel>

	and carries a manifest whose generation changes on every write.
*/
package volume

import (
	"fmt"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/storage"
)

// Channels of an assembled section besides one per drawing type.
const (
	ChannelComponents        = "components"
	ChannelSkeletons         = "skeletons"
	ChannelComponentDrawings = "component_drawings"
)

// LabelsPath is the image path that receives painted label tiles.
const LabelsPath = "/labels"

// SectionChannels returns every channel written for an assembled section.
func SectionChannels() []string {
	channels := []string{ChannelComponents, ChannelSkeletons, ChannelComponentDrawings}
	for _, t := range catvol.DrawingTypes() {
		channels = append(channels, t.ChannelName())
	}
	return channels
}

// SectionPath returns the key of a channel plane in a segmentation volume.
func SectionPath(scale int, z int32, channel string) string {
	return fmt.Sprintf("scale/%d/section/%d/%s", scale, z, channel)
}

// ImagePath returns the key of section z of an image dataset, e.g. "/", "/labels" or
// "em/raw".  Leading and trailing slashes are ignored.
func ImagePath(hdf5Path string, scale int, z int32) string {
	base := strings.Trim(hdf5Path, "/")
	if base == "" {
		return fmt.Sprintf("scale/%d/data/%d", scale, z)
	}
	return fmt.Sprintf("%s/scale/%d/data/%d", base, scale, z)
}

// RawContext returns the namespace of a stack's image volume.
func RawContext(projectID, stackID int64) storage.Context {
	return storage.NewContext(catvol.VolumeName(projectID, stackID, ""))
}

// SegmentationContext returns the namespace of a stack's assembled segmentation volume.
func SegmentationContext(projectID, stackID int64) storage.Context {
	return storage.NewContext(catvol.VolumeName(projectID, stackID, "segmentation"))
}
