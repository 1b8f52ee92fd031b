package giftools

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Poster renders a still PNG of the first frame of the sequence, clipped to
// the polygon at the source resolution and bounded to maxDim pixels on the
// longer side. It is meant for preview thumbnails of a pending export.
func Poster(frames []RawFrame, sourceWidth, sourceHeight int, poly Polygon, maxDim int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty frame sequence", ErrInvalidEncodeParams)
	}
	if sourceWidth <= 0 || sourceHeight <= 0 {
		return nil, fmt.Errorf("%w: source dimensions required", ErrInvalidEncodeParams)
	}
	if err := poly.Validate(); err != nil {
		return nil, err
	}
	if maxDim <= 0 {
		maxDim = sourceWidth
		if sourceHeight > maxDim {
			maxDim = sourceHeight
		}
	}

	r := NewReplayer(frames, sourceWidth, sourceHeight)
	full, _, _, err := r.Next()
	if err != nil {
		return nil, err
	}

	still := clipFrame(full, poly, sourceWidth, sourceHeight)
	fitted := imaging.Fit(still, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("poster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
