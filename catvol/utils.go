package catvol

import (
	"fmt"
	"path/filepath"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// ConvertToAbsolute returns an absolute path, interpreting a relative path as
// relative to the given directory.
func ConvertToAbsolute(path, dir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(filepath.Join(dir, path))
	if err != nil {
		return "", fmt.Errorf("unable to make %q absolute relative to %q: %v", path, dir, err)
	}
	return abs, nil
}

// VolumeName returns the identity of a project/stack volume, used as lock key and
// storage namespace.  A non-empty kind is appended, e.g. "3_1_segmentation".
func VolumeName(projectID, stackID int64, kind string) string {
	if kind == "" {
		return fmt.Sprintf("%d_%d", projectID, stackID)
	}
	return fmt.Sprintf("%d_%d_%s", projectID, stackID, kind)
}
