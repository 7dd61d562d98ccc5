package volume

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// Writer dumps frames to <dir>/frames every N steps. A nil Writer ignores
// every call.
type Writer struct {
	dir     string
	every   int
	written int
	bytes   int64
}

// NewWriter creates the frames directory. It returns nil when dir is empty
// or every is not positive.
func NewWriter(dir string, every int) (*Writer, error) {
	if dir == "" || every <= 0 {
		return nil, nil
	}
	framesDir := filepath.Join(dir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("creating frames directory: %w", err)
	}
	return &Writer{dir: framesDir, every: every}, nil
}

// Due reports whether the frame for step should be written.
func (w *Writer) Due(step int32) bool {
	return w != nil && step%int32(w.every) == 0
}

// Path returns the file name used for a frame.
func (w *Writer) Path(grid string, step int32) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%06d.msgpack.zst", grid, step))
}

// Write encodes f and writes it if its step is due. It returns the path
// written, or "" when skipped.
func (w *Writer) Write(f *Frame) (string, error) {
	if !w.Due(f.Step) {
		return "", nil
	}
	data, err := Encode(f)
	if err != nil {
		return "", err
	}
	path := w.Path(f.Grid, f.Step)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing frame: %w", err)
	}
	w.written++
	w.bytes += int64(len(data))
	slog.Debug("frame written", "path", path, "size", humanize.Bytes(uint64(len(data))))
	return path, nil
}

// Written returns the number of frames and bytes written so far.
func (w *Writer) Written() (frames int, bytes int64) {
	if w == nil {
		return 0, 0
	}
	return w.written, w.bytes
}

// Dir returns the frames directory.
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// ReadFrame loads a frame written by Write.
func ReadFrame(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
