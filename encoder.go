package giftools

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"
	"time"
)

// EncodeOptions carries the parameters of one encode attempt.
type EncodeOptions struct {
	Width  int
	Height int

	// Quality is an ordinal: 1 encodes with the full palette, higher values
	// shrink the palette to trade fidelity for byte size.
	Quality int

	// TransparentColor is the single color treated as fully transparent.
	TransparentColor color.NRGBA

	// LoopCount is the animation loop count. 0 loops forever.
	LoopCount int
}

// gifEncoder implements Encoder on top of the standard library GIF codec,
// buffering paletted frames and assembling the container on flush.
type gifEncoder struct {
	opt        EncodeOptions
	pal        color.Palette
	frames     []*image.Paletted
	delays     []int
	hasFlushed bool
}

// NewGIFEncoder creates an Encoder that produces an animated GIF at the given
// dimensions, mapping every pixel equal to opt.TransparentColor to the
// transparent palette index.
func NewGIFEncoder(opt *EncodeOptions) (Encoder, error) {
	if opt == nil || opt.Width <= 0 || opt.Height <= 0 {
		return nil, ErrInvalidEncodeParams
	}
	return &gifEncoder{
		opt: *opt,
		pal: paletteForQuality(opt.Quality),
	}, nil
}

// paletteForQuality returns the encode palette for a quality ordinal.
// Index 0 is always the transparent entry; the remaining entries subsample
// the Plan9 palette, which spans the RGB cube evenly. Lower quality keeps
// fewer colors.
func paletteForQuality(quality int) color.Palette {
	stride := 1
	switch {
	case quality <= 1:
		stride = 1 // 255 colors
	case quality == 2:
		stride = 2 // 127 colors
	default:
		stride = 4 // 63 colors
	}

	pal := make(color.Palette, 0, len(palette.Plan9)/stride+1)
	pal = append(pal, color.NRGBA{})
	for i := stride; i < len(palette.Plan9); i += stride {
		pal = append(pal, palette.Plan9[i])
	}
	return pal
}

// Encode appends one full-canvas frame. Passing a nil frame flushes the
// encoder and returns the complete GIF. Returns io.EOF if called again after
// flushing.
func (e *gifEncoder) Encode(f *image.NRGBA, delay time.Duration) ([]byte, error) {
	if e.hasFlushed {
		return nil, io.EOF
	}
	if f == nil {
		return e.flush()
	}

	b := f.Bounds()
	if b.Dx() != e.opt.Width || b.Dy() != e.opt.Height {
		return nil, ErrInvalidEncodeParams
	}

	e.frames = append(e.frames, e.palettize(f))
	e.delays = append(e.delays, int(delay/(10*time.Millisecond)))
	return nil, nil
}

// palettize quantizes a frame against the encode palette. Pixels equal to the
// transparent color map to index 0 exactly; all other pixels are matched
// against the opaque palette entries only, so dark pixels never collapse into
// the transparent slot.
func (e *gifEncoder) palettize(f *image.NRGBA) *image.Paletted {
	b := f.Bounds()
	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), e.pal)
	opaque := e.pal[1:]

	// Quantization cache: identical source pixels resolve to the same index,
	// and real frames carry long runs of identical pixels.
	cache := make(map[color.NRGBA]uint8)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := f.NRGBAAt(x, y)
			if c == e.opt.TransparentColor {
				pm.SetColorIndex(x-b.Min.X, y-b.Min.Y, 0)
				continue
			}
			idx, ok := cache[c]
			if !ok {
				idx = uint8(opaque.Index(c) + 1)
				cache[c] = idx
			}
			pm.SetColorIndex(x-b.Min.X, y-b.Min.Y, idx)
		}
	}
	return pm
}

func (e *gifEncoder) flush() ([]byte, error) {
	e.hasFlushed = true
	if len(e.frames) == 0 {
		return nil, ErrInvalidEncodeParams
	}

	disposal := make([]byte, len(e.frames))
	for i := range disposal {
		// Every frame is a full-canvas repaint; clearing the region between
		// frames keeps viewers from showing stale pixels under the
		// transparent key area.
		disposal[i] = gif.DisposalBackground
	}

	out := &gif.GIF{
		Image:     e.frames,
		Delay:     e.delays,
		Disposal:  disposal,
		LoopCount: e.opt.LoopCount,
		Config: image.Config{
			Width:  e.opt.Width,
			Height: e.opt.Height,
		},
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases buffered frames.
func (e *gifEncoder) Close() {
	e.frames = nil
	e.delays = nil
}
