package giftools

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"io"
	"time"
)

// gifDecoder implements Decoder on top of the standard library GIF codec.
// The whole file is decoded up front; DecodeTo then hands out one raw frame
// per call.
type gifDecoder struct {
	g          *gif.GIF
	width      int
	height     int
	frameIndex int
}

func newGifDecoder(buf []byte) (d *gifDecoder, err error) {
	// gif.DecodeAll can and will panic on some of the broken GIFs found in
	// the wild, so the panic is converted into a regular decode error.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("%w: %v", ErrDecodingFailed, r)
		}
	}()

	g, err := gif.DecodeAll(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodingFailed, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrDecodingFailed)
	}

	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		// Some encoders write a zero logical screen size; fall back to the
		// union of the frame rectangles.
		w, h = unionDimensions(g)
	}

	return &gifDecoder{g: g, width: w, height: h}, nil
}

// unionDimensions returns the extent covered by all frame rectangles.
func unionDimensions(g *gif.GIF) (int, int) {
	var r image.Rectangle
	for _, img := range g.Image {
		r = r.Union(img.Rect)
	}
	return r.Max.X, r.Max.Y
}

// Header returns the canvas dimensions and frame count of the animation.
func (d *gifDecoder) Header() (*ImageHeader, error) {
	return &ImageHeader{
		width:     d.width,
		height:    d.height,
		numFrames: len(d.g.Image),
	}, nil
}

// Description returns the image format description ("GIF").
func (d *gifDecoder) Description() string {
	return "GIF"
}

// LoopCount returns the number of times the animation should loop.
// 0 means loop forever.
func (d *gifDecoder) LoopCount() int {
	return d.g.LoopCount
}

// Duration returns the total duration of the animation.
func (d *gifDecoder) Duration() time.Duration {
	var total time.Duration
	for _, delay := range d.g.Delay {
		total += time.Duration(delay) * 10 * time.Millisecond
	}
	return total
}

// DecodeTo fills f with the next raw frame. Returns io.EOF when all frames
// have been produced.
func (d *gifDecoder) DecodeTo(f *RawFrame) error {
	if d.frameIndex >= len(d.g.Image) {
		return io.EOF
	}
	src := d.g.Image[d.frameIndex]

	patch := image.NewNRGBA(src.Rect)
	for y := src.Rect.Min.Y; y < src.Rect.Max.Y; y++ {
		for x := src.Rect.Min.X; x < src.Rect.Max.X; x++ {
			patch.Set(x, y, src.At(x, y))
		}
	}

	f.Patch = patch
	f.Bounds = src.Rect
	f.Delay = time.Duration(d.g.Delay[d.frameIndex]) * 10 * time.Millisecond
	f.Disposal = disposalFromGIF(d.g.Disposal, d.frameIndex)

	d.frameIndex++
	return nil
}

// disposalFromGIF maps the stdlib disposal byte for frame i to a
// DisposalMode. A nil disposal slice means no graphic control extensions
// were present.
func disposalFromGIF(disposal []byte, i int) DisposalMode {
	if disposal == nil || i >= len(disposal) {
		return DisposalUnspecified
	}
	switch disposal[i] {
	case gif.DisposalNone:
		return DisposalNone
	case gif.DisposalBackground:
		return DisposalRestoreBackground
	case gif.DisposalPrevious:
		return DisposalRestorePrevious
	default:
		return DisposalUnspecified
	}
}

// Close releases resources associated with the decoder.
func (d *gifDecoder) Close() {
	d.g = nil
}
