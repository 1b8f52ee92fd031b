package giftools

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"
)

// Size-fitting policy. These are deliberate policy choices, not derived
// values, and the tests pin them.
const (
	// maxExportAttempts bounds the encode loop so it always terminates.
	maxExportAttempts = 5

	// minTargetDim is the usability floor: output smaller than this is not
	// useful regardless of size compliance.
	minTargetDim = 32

	// budgetSafetyMargin shrinks the computed size ratio before deriving the
	// dimension scale factor. Byte size grows super-linearly with pixel count
	// because of encoder overhead, so aiming exactly at the budget tends to
	// overshoot.
	budgetSafetyMargin = 0.9
)

// ExportStatus reports how the size-constrained encode loop ended.
type ExportStatus int

const (
	// ExportAccepted means the output is within the size budget, or no
	// budget was configured.
	ExportAccepted ExportStatus = iota

	// ExportBestEffort means shrinking further would drop a dimension below
	// the usability floor; the last produced output was kept even though it
	// exceeds the budget.
	ExportBestEffort

	// ExportGaveUp means the attempt budget was exhausted without meeting
	// the size target; the last produced output is still returned.
	ExportGaveUp
)

// String returns a human-readable status name.
func (s ExportStatus) String() string {
	switch s {
	case ExportAccepted:
		return "accepted"
	case ExportBestEffort:
		return "best-effort"
	case ExportGaveUp:
		return "gave-up"
	default:
		return "unknown"
	}
}

// ExportOptions configures one export run.
type ExportOptions struct {
	// SourceWidth and SourceHeight are the full-canvas dimensions of the raw
	// frame sequence.
	SourceWidth  int
	SourceHeight int

	// TargetWidth and TargetHeight are the initial output dimensions.
	// Zero values default to the source dimensions. Both are clamped to the
	// 32 pixel floor.
	TargetWidth  int
	TargetHeight int

	// Polygon is the clip region in source coordinates.
	Polygon Polygon

	// SizeBudget is the output size target in bytes. Zero disables the
	// size-fitting loop.
	SizeBudget int

	// LoopCount is passed through to the encoder. 0 loops forever.
	LoopCount int

	// Progress, when non-nil, receives fractional progress in [0,1],
	// monotonically increasing within each attempt. Reconstruction runs once
	// and shares the first attempt's scale: it covers [0, 0.5) and the first
	// mask-and-encode pass covers [0.5, 1]. Later attempts each run 0 to 1.
	// Advisory only.
	Progress func(float64)

	// NewEncoder creates the encoder for each attempt.
	// Defaults to NewGIFEncoder.
	NewEncoder EncoderFactory
}

// ExportResult is the outcome of an export run. Over-budget outcomes are
// reported through Status, never as an error: the caller always gets a
// usable artifact when err is nil.
type ExportResult struct {
	Data     []byte
	Width    int
	Height   int
	Attempts int
	Status   ExportStatus
}

// qualityForAttempt degrades encoder quality on a fixed schedule keyed to the
// attempt number: mild, moderate, then maximum for every later attempt.
// Quality is not derived from the measured size because its effect on byte
// size is non-linear; dimension scaling carries the primary size-reduction
// burden.
func qualityForAttempt(attempt int) int {
	switch {
	case attempt <= 1:
		return 1
	case attempt == 2:
		return 2
	default:
		return 3
	}
}

// Export clips every frame of the sequence to the polygon, resizes to the
// target dimensions and re-encodes, repeating with smaller dimensions and
// coarser quality until the result fits the size budget or the attempt limit
// is reached.
//
// Reconstruction runs once: its output is resolution-independent and is
// reused by every attempt. Cancellation is honored between attempts.
func Export(ctx context.Context, frames []RawFrame, opts *ExportOptions) (*ExportResult, error) {
	if opts == nil || opts.SourceWidth <= 0 || opts.SourceHeight <= 0 {
		return nil, fmt.Errorf("%w: source dimensions required", ErrInvalidEncodeParams)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty frame sequence", ErrInvalidEncodeParams)
	}
	if err := opts.Polygon.Validate(); err != nil {
		return nil, err
	}

	width, height := opts.TargetWidth, opts.TargetHeight
	if width == 0 {
		width = opts.SourceWidth
	}
	if height == 0 {
		height = opts.SourceHeight
	}
	if width < minTargetDim {
		width = minTargetDim
	}
	if height < minTargetDim {
		height = minTargetDim
	}

	newEncoder := opts.NewEncoder
	if newEncoder == nil {
		newEncoder = NewGIFEncoder
	}

	report := opts.Progress
	fulls, delays, err := reconstructAll(frames, opts, func(p float64) {
		if report != nil {
			report(p * 0.5)
		}
	})
	if err != nil {
		return nil, err
	}

	log := Logger()
	for attempt := 1; ; attempt++ {
		// Reconstruction consumed the first half of attempt 1's scale, so the
		// first mask-and-encode pass reports the second half. The callback
		// stream stays monotone within every attempt.
		progress := report
		if attempt == 1 && report != nil {
			progress = func(p float64) { report(0.5 + p*0.5) }
		}
		blob, err := runAttempt(fulls, delays, opts, newEncoder, width, height, attempt, progress)
		if err != nil {
			// Retrying with the same parameters is pointless; a rejected
			// attempt aborts the whole export.
			return nil, err
		}

		log.Debug("export attempt finished",
			"attempt", attempt, "width", width, "height", height,
			"quality", qualityForAttempt(attempt), "bytes", len(blob))

		result := &ExportResult{Data: blob, Width: width, Height: height, Attempts: attempt}

		if opts.SizeBudget <= 0 || len(blob) <= opts.SizeBudget {
			result.Status = ExportAccepted
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt == maxExportAttempts {
			log.Warn("size budget not met, returning last attempt",
				"budget", opts.SizeBudget, "bytes", len(blob))
			result.Status = ExportGaveUp
			return result, nil
		}

		// Pixel count is the product of both dimensions, so the area scales
		// with the byte ratio while each dimension scales with its square
		// root.
		ratio := float64(opts.SizeBudget) / float64(len(blob))
		factor := math.Sqrt(ratio * budgetSafetyMargin)
		nextWidth := int(float64(width) * factor)
		nextHeight := int(float64(height) * factor)
		if nextWidth < minTargetDim || nextHeight < minTargetDim {
			result.Status = ExportBestEffort
			return result, nil
		}
		width, height = nextWidth, nextHeight
	}
}

// reconstructAll replays the raw sequence once and materializes every
// full-canvas frame with its delay.
func reconstructAll(frames []RawFrame, opts *ExportOptions, progress func(float64)) ([]*image.NRGBA, []time.Duration, error) {
	r := NewReplayer(frames, opts.SourceWidth, opts.SourceHeight)
	fulls := make([]*image.NRGBA, 0, len(frames))
	delays := make([]time.Duration, 0, len(frames))
	total := float64(len(frames))
	for r.HasNext() {
		progress(float64(len(fulls)) / total)
		full, delay, _, err := r.Next()
		if err != nil {
			return nil, nil, err
		}
		fulls = append(fulls, full)
		delays = append(delays, delay)
	}
	return fulls, delays, nil
}

// runAttempt masks every reconstructed frame at the attempt's target
// resolution and encodes the sequence. Frame rate is always preserved: the
// loop trades resolution and quality for size, never frames.
func runAttempt(fulls []*image.NRGBA, delays []time.Duration, opts *ExportOptions,
	newEncoder EncoderFactory, width, height, attempt int, progress func(float64)) ([]byte, error) {

	enc, err := newEncoder(&EncodeOptions{
		Width:            width,
		Height:           height,
		Quality:          qualityForAttempt(attempt),
		TransparentColor: KeyColor,
		LoopCount:        opts.LoopCount,
	})
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	total := float64(len(fulls))
	for i, full := range fulls {
		if progress != nil {
			progress(float64(i) / total)
		}
		masked := clipFrame(full, opts.Polygon, width, height)
		if _, err := enc.Encode(masked, delays[i]); err != nil {
			return nil, err
		}
	}

	blob, err := enc.Encode(nil, 0)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(1)
	}
	return blob, nil
}

// ClipGIF decodes an animated GIF, clips it to the polygon and re-encodes it
// under the options' size budget. Source dimensions and loop count are taken
// from the container when not set.
func ClipGIF(ctx context.Context, src []byte, opts *ExportOptions) (*ExportResult, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: options required", ErrInvalidEncodeParams)
	}

	d, err := NewDecoder(src)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	h, err := d.Header()
	if err != nil {
		return nil, err
	}

	frames, err := ReadFrames(d)
	if err != nil {
		return nil, err
	}

	run := *opts
	if run.SourceWidth == 0 {
		run.SourceWidth = h.Width()
	}
	if run.SourceHeight == 0 {
		run.SourceHeight = h.Height()
	}
	if run.LoopCount == 0 {
		run.LoopCount = d.LoopCount()
	}
	return Export(ctx, frames, &run)
}
