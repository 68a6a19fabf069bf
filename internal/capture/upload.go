package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// maxExtLen bounds the file extension kept from an upload's name so OpenCV
// can still pick a demuxer from it.
const maxExtLen = 8

// SaveUpload copies r into a new file under dir and returns a temporary
// descriptor for it. The file is removed when the job's source is closed.
func SaveUpload(dir, name string, r io.Reader) (occupancy.Descriptor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return occupancy.Descriptor{}, fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.CreateTemp(dir, "upload-*"+uploadExt(name))
	if err != nil {
		return occupancy.Descriptor{}, fmt.Errorf("create upload file: %w", err)
	}

	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(f.Name())
		return occupancy.Descriptor{}, fmt.Errorf("write upload: %w", err)
	}

	return occupancy.Descriptor{URI: f.Name(), Temporary: true}, nil
}

func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
