package imaging

import (
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// frameExtensions lists the file extensions FrameSource accepts.
var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// FrameSource yields the frames stored in a directory in lexical file name
// order.
//
// Recorded streams are usually dumped as zero-padded sequence numbers
// (frame_000001.png, ...), so lexical order is playback order.
//
// # Example Usage
//
//	src, err := imaging.OpenFrameDir("/data/run-42")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    path, frame, err := src.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    // process frame...
//	}
type FrameSource struct {
	paths []string
	next  int
}

// OpenFrameDir lists the image files in dir.
//
// Parameters:
//   - dir: Directory holding one image file per frame. Subdirectories and
//     files with unsupported extensions are ignored.
//
// Returns:
//   - *FrameSource: Source positioned before the first frame. Files are not
//     decoded until Next is called.
//   - error: Non-nil if dir cannot be read or holds no supported image files.
func OpenFrameDir(dir string) (*FrameSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read frame directory")
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no image frames found in %s", dir)
	}
	sort.Strings(paths)

	return &FrameSource{paths: paths}, nil
}

// Len returns the total number of frames in the source.
func (s *FrameSource) Len() int {
	return len(s.paths)
}

// Next decodes the next frame. It returns io.EOF once all frames were read.
func (s *FrameSource) Next() (string, image.Image, error) {
	if s.next >= len(s.paths) {
		return "", nil, io.EOF
	}
	path := s.paths[s.next]
	s.next++

	img, err := imaging.Open(path)
	if err != nil {
		return path, nil, errors.Wrapf(err, "failed to decode frame %s", path)
	}
	return path, img, nil
}

// SaveFrame encodes img to path; the format follows the file extension.
// Missing parent directories are created.
func SaveFrame(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrap(err, "failed to save frame")
	}
	return nil
}
