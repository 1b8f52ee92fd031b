package giftools

import (
	"image"
	"image/draw"
	"io"
	"time"
)

// Replayer reconstructs the true per-frame pixel state of a differential
// frame sequence. It keeps one persistent full-canvas buffer and replays the
// raw frames against it, emitting a full-canvas snapshot per input frame.
//
// Each export run owns exactly one Replayer; the canvas buffer must not be
// shared across concurrent runs.
type Replayer struct {
	frames []RawFrame
	canvas *image.NRGBA
	pos    int
}

// NewReplayer creates a Replayer over frames for a width x height canvas.
// The canvas starts fully transparent.
func NewReplayer(frames []RawFrame, width, height int) *Replayer {
	return &Replayer{
		frames: frames,
		canvas: image.NewNRGBA(image.Rect(0, 0, width, height)),
	}
}

// HasNext reports whether more frames are available.
func (r *Replayer) HasNext() bool {
	return r.pos < len(r.frames)
}

// Next replays the next raw frame and returns a snapshot of the full canvas
// together with the frame's delay and its index in the raw sequence. The
// snapshot is a copy; later replay steps never mutate frames already handed
// out. Returns io.EOF once the sequence is exhausted.
//
// Disposal is applied lazily, one step behind: a frame's disposal describes
// what happens after its display period ends, which is exactly when the next
// frame begins compositing.
func (r *Replayer) Next() (*image.NRGBA, time.Duration, int, error) {
	if !r.HasNext() {
		return nil, 0, 0, io.EOF
	}

	if r.pos > 0 {
		prev := &r.frames[r.pos-1]
		if disposalTransitions[prev.Disposal] == canvasClearPrev {
			clearRect(r.canvas, prev.Bounds)
		}
	}

	f := &r.frames[r.pos]
	// GIF patch pixels are either fully opaque or fully transparent, so
	// drawing with Over overwrites every pixel the patch actually carries.
	// Patch and canvas share one coordinate space: the source point is the
	// clipped rect's Min, which differs from f.Bounds.Min when the placement
	// rect sticks out past the canvas edge.
	rect := f.Bounds.Intersect(r.canvas.Bounds())
	draw.Draw(r.canvas, rect, f.Patch, rect.Min, draw.Over)

	snap := image.NewNRGBA(r.canvas.Bounds())
	copy(snap.Pix, r.canvas.Pix)

	idx := r.pos
	r.pos++
	return snap, f.Delay, idx, nil
}

// Reset rewinds the replayer to the first frame and clears the canvas.
func (r *Replayer) Reset() {
	r.pos = 0
	for i := range r.canvas.Pix {
		r.canvas.Pix[i] = 0
	}
}

// clearRect fills rect on the canvas with transparent (0,0,0,0).
func clearRect(canvas *image.NRGBA, rect image.Rectangle) {
	rect = rect.Intersect(canvas.Bounds())
	if rect.Empty() {
		return
	}
	rowLen := rect.Dx() * 4
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		off := canvas.PixOffset(rect.Min.X, y)
		row := canvas.Pix[off : off+rowLen]
		for i := range row {
			row[i] = 0
		}
	}
}
