package giftools

import (
	"image"
	"time"
)

// DisposalMode describes how a frame's region is treated once its display
// period ends, before the next frame is drawn.
type DisposalMode int

const (
	DisposalUnspecified DisposalMode = iota
	DisposalNone
	DisposalRestoreBackground
	DisposalRestorePrevious
)

// String returns the GIF89a name of the disposal mode.
func (m DisposalMode) String() string {
	switch m {
	case DisposalNone:
		return "none"
	case DisposalRestoreBackground:
		return "restore-background"
	case DisposalRestorePrevious:
		return "restore-previous"
	default:
		return "unspecified"
	}
}

// RawFrame is one differential frame as produced by a Decoder: the minimal
// changed pixel patch, its placement rectangle on the full canvas, the
// display delay and the disposal instruction. Frames are immutable once
// decoded.
type RawFrame struct {
	// Patch holds the frame's pixels. Its bounds equal Bounds, so the patch
	// is already anchored at its placement offset on the canvas.
	Patch *image.NRGBA

	// Bounds is the placement rectangle within the full canvas.
	Bounds image.Rectangle

	// Delay is the display duration of this frame.
	Delay time.Duration

	// Disposal applies after this frame's display period ends.
	Disposal DisposalMode
}

// canvasAction is what the replayer does to the full canvas before
// compositing the next frame, derived from the previous frame's disposal.
type canvasAction int

const (
	// canvasKeep leaves the canvas untouched.
	canvasKeep canvasAction = iota
	// canvasClearPrev clears the previous frame's placement rectangle to
	// transparent.
	canvasClearPrev
)

// disposalTransitions maps a frame's disposal mode to the canvas action taken
// when the NEXT frame begins compositing. Disposal describes what happens
// after a frame's display period ends, which is exactly when the next frame
// starts, so the table is consulted one step behind.
//
// DisposalRestorePrevious is mapped to canvasKeep: exact multi-frame
// restoration stacking is not implemented and the common approximate handling
// is to leave the canvas as-is.
var disposalTransitions = map[DisposalMode]canvasAction{
	DisposalUnspecified:       canvasKeep,
	DisposalNone:              canvasKeep,
	DisposalRestoreBackground: canvasClearPrev,
	DisposalRestorePrevious:   canvasKeep,
}
