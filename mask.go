package giftools

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// KeyColor is the reserved substitution color used to mark pixels outside the
// clip polygon. The encoder treats it as the single transparent color, so it
// stands in for true per-pixel alpha. Any source pixel that happens to equal
// this exact value also becomes transparent; the value is chosen to be
// statistically unlikely in real photographic or GIF content and the loss is
// an accepted approximation of the single-color-key scheme.
var KeyColor = color.NRGBA{R: 0x00, G: 0xFE, B: 0x01, A: 0xFF}

// Point is a polygon vertex in source-canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is a closed clip region: the edge from the last point back to the
// first is implicit. Points are not deduplicated.
type Polygon []Point

// Validate rejects polygons that cannot enclose any area. Self-intersecting
// polygons are not validated; they are rasterized under the non-zero winding
// rule (see clipFrame).
func (p Polygon) Validate() error {
	if len(p) < 3 {
		return ErrDegeneratePolygon
	}
	return nil
}

// scale returns the polygon with every vertex multiplied by (sx, sy).
// Geometry is scaled before rasterization so edges stay straight lines in
// target space; scaling a rasterized region instead would alias the boundary.
func (p Polygon) scale(sx, sy float64) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{X: pt.X * sx, Y: pt.Y * sy}
	}
	return out
}

// clipFrame produces a targetWidth x targetHeight bitmap in which every pixel
// inside the polygon is sourced from the scaled full bitmap and every pixel
// outside keeps KeyColor exactly.
//
// The polygon is rasterized under the non-zero winding rule and the coverage
// is binarized: a pixel is either fully inside or fully outside. A soft
// anti-aliased edge would blend source pixels toward the key color, and those
// blended pixels would neither survive the encoder's exact color key nor keep
// the outside-equals-key-color guarantee.
func clipFrame(full *image.NRGBA, poly Polygon, targetWidth, targetHeight int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(KeyColor), image.Point{}, draw.Src)

	srcBounds := full.Bounds()
	sx := float64(targetWidth) / float64(srcBounds.Dx())
	sy := float64(targetHeight) / float64(srcBounds.Dy())

	mask := rasterizePolygon(poly.scale(sx, sy), targetWidth, targetHeight)

	scaled := image.NewNRGBA(dst.Bounds())
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), full, srcBounds, xdraw.Src, nil)

	draw.DrawMask(dst, dst.Bounds(), scaled, image.Point{}, mask, image.Point{}, draw.Over)
	return dst
}

// rasterizePolygon fills the closed polygon into a hard-edged alpha mask.
func rasterizePolygon(poly Polygon, width, height int) *image.Alpha {
	z := vector.NewRasterizer(width, height)
	z.DrawOp = draw.Src
	z.MoveTo(float32(poly[0].X), float32(poly[0].Y))
	for _, pt := range poly[1:] {
		z.LineTo(float32(pt.X), float32(pt.Y))
	}
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	// Binarize the coverage so the clip edge is exact.
	for i, a := range mask.Pix {
		if a >= 0x80 {
			mask.Pix[i] = 0xff
		} else {
			mask.Pix[i] = 0x00
		}
	}
	return mask
}
