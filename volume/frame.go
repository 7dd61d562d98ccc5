// Package volume packages output volumes as compressed frames for dumping
// to disk and streaming to viewers.
package volume

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame is one output volume at one step.
type Frame struct {
	RunID string    `msgpack:"run"`
	Step  int32     `msgpack:"step"`
	Grid  string    `msgpack:"grid"`
	Size  [3]int    `msgpack:"size"`
	Data  []float32 `msgpack:"data"`
}

// Cells returns the number of cells the frame's size describes.
func (f *Frame) Cells() int { return f.Size[0] * f.Size[1] * f.Size[2] }

// At returns the value at cell (x, y, z), x fastest.
func (f *Frame) At(x, y, z int) float32 {
	return f.Data[x+f.Size[0]*(y+f.Size[1]*z)]
}

// Validate checks that the data length matches the size.
func (f *Frame) Validate() error {
	if f.Cells() != len(f.Data) {
		return fmt.Errorf("frame %s@%d: size %v needs %d values, have %d",
			f.Grid, f.Step, f.Size, f.Cells(), len(f.Data))
	}
	return nil
}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codec returns the shared zstd coder pair. EncodeAll and DecodeAll are safe
// for concurrent use.
func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// Encode serialises f with msgpack and compresses it with zstd.
func Encode(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	zenc, _, err := codec()
	if err != nil {
		return nil, err
	}
	return zenc.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/2)), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Frame, error) {
	_, zdec, err := codec()
	if err != nil {
		return nil, err
	}
	raw, err := zdec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing frame: %w", err)
	}
	var f Frame
	if err := msgpack.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
