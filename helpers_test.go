package giftools

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"time"
)

// solidPatch builds an opaque single-color NRGBA patch anchored at rect.
func solidPatch(rect image.Rectangle, c color.NRGBA) *image.NRGBA {
	p := image.NewNRGBA(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			p.SetNRGBA(x, y, c)
		}
	}
	return p
}

// solidFrames builds n full-canvas raw frames, each a distinct solid color,
// all with the same delay.
func solidFrames(n, width, height int, delay time.Duration) []RawFrame {
	rect := image.Rect(0, 0, width, height)
	frames := make([]RawFrame, n)
	for i := range frames {
		c := color.NRGBA{R: uint8(40 * i), G: uint8(255 - 20*i), B: 0x30, A: 0xff}
		frames[i] = RawFrame{
			Patch:    solidPatch(rect, c),
			Bounds:   rect,
			Delay:    delay,
			Disposal: DisposalNone,
		}
	}
	return frames
}

// rectPolygon builds an axis-aligned rectangular clip polygon.
func rectPolygon(x0, y0, x1, y1 float64) Polygon {
	return Polygon{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// encodeTestGIF assembles an in-memory animated GIF with the given per-frame
// rectangles, delays (in 10ms units) and disposal bytes.
func encodeTestGIF(width, height int, rects []image.Rectangle, delays []int, disposal []byte) []byte {
	g := &gif.GIF{
		Config: image.Config{Width: width, Height: height},
	}
	for i, r := range rects {
		pm := image.NewPaletted(r, palette.Plan9)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				pm.Set(x, y, palette.Plan9[(i*37+128)%256])
			}
		}
		g.Image = append(g.Image, pm)
		g.Delay = append(g.Delay, delays[i])
	}
	g.Disposal = disposal

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
