// Package giftools reshapes animated GIFs: every frame is clipped to a
// user-supplied polygon, optionally resized, and re-encoded so that the
// result fits an optional byte-size budget while preserving the original
// frame timing.
//
// The pipeline is Decoder -> Replayer -> polygon mask -> Encoder, wrapped
// by Export which re-runs the mask-and-encode stages at progressively
// smaller resolutions and coarser quality until the output fits the budget
// or the attempt limit is reached.
package giftools

import (
	"bytes"
	"errors"
	"image"
	"io"
	"time"
)

var (
	ErrInvalidImage        = errors.New("unrecognized image format")
	ErrDecodingFailed      = errors.New("failed to decode image")
	ErrDegeneratePolygon   = errors.New("polygon needs at least 3 points")
	ErrInvalidEncodeParams = errors.New("invalid encoder parameters")

	gif87Magic = []byte("GIF87a")
	gif89Magic = []byte("GIF89a")
)

// Decoder produces the ordered raw frame sequence of an animated image.
// DecodeTo fills one frame at a time and returns io.EOF once the sequence
// is exhausted.
type Decoder interface {
	Header() (*ImageHeader, error)
	Description() string
	LoopCount() int
	Duration() time.Duration
	DecodeTo(f *RawFrame) error
	Close()
}

// Encoder consumes full-canvas frames one at a time. Passing a nil frame
// flushes the encoder and returns the complete encoded blob.
type Encoder interface {
	Encode(f *image.NRGBA, delay time.Duration) ([]byte, error)
	Close()
}

// EncoderFactory creates a fresh Encoder for one encode attempt. The export
// loop calls it once per attempt since dimensions and quality change between
// attempts.
type EncoderFactory func(opt *EncodeOptions) (Encoder, error)

// ImageHeader describes the source animation canvas.
type ImageHeader struct {
	width     int
	height    int
	numFrames int
}

// Width returns the canvas width in pixels.
func (h *ImageHeader) Width() int { return h.width }

// Height returns the canvas height in pixels.
func (h *ImageHeader) Height() int { return h.height }

// NumFrames returns the number of frames in the animation.
func (h *ImageHeader) NumFrames() int { return h.numFrames }

func isGIF(maybeGIF []byte) bool {
	return bytes.HasPrefix(maybeGIF, gif87Magic) || bytes.HasPrefix(maybeGIF, gif89Magic)
}

// NewDecoder sniffs buf and returns a Decoder for it. The check is cheap and
// only looks at magic bytes; format errors surface from Header or DecodeTo.
func NewDecoder(buf []byte) (Decoder, error) {
	if isGIF(buf) {
		return newGifDecoder(buf)
	}
	return nil, ErrInvalidImage
}

// ReadFrames drains d into a materialized frame sequence. The export loop
// needs the whole sequence up front because reconstruction is replayed
// against it and its output is reused across encode attempts.
func ReadFrames(d Decoder) ([]RawFrame, error) {
	var frames []RawFrame
	for {
		var f RawFrame
		err := d.DecodeTo(&f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, err
		}
		frames = append(frames, f)
	}
}
