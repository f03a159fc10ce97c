package reader

import "sync/atomic"

// DecodeMode controls how a Reader handles intermediate frames between
// floor-on-grid targets. It is global and set atomically by the transport
// layer (playback controller, ruler drag); every Reader observes it fresh
// on each DecodeAt call.
type DecodeMode int32

const (
	// Play decodes all frames in order, BGRA-converts all of them, caches
	// them contiguously, and runs prefetch actively.
	Play DecodeMode = iota
	// Scrub decodes from the keyframe through reordered B-frames but only
	// BGRA-converts the floor frame, caching just it.
	Scrub
	// Park has the same shape as Scrub; it carries no expectation that a
	// nearby frame will be requested next.
	Park
)

func (m DecodeMode) String() string {
	switch m {
	case Play:
		return "Play"
	case Scrub:
		return "Scrub"
	case Park:
		return "Park"
	default:
		return "Unknown"
	}
}

var globalMode atomic.Int32

// SetDecodeMode sets the process-wide decode mode.
func SetDecodeMode(mode DecodeMode) {
	globalMode.Store(int32(mode))
}

// GetDecodeMode returns the process-wide decode mode. Defaults to Park.
func GetDecodeMode() DecodeMode {
	return DecodeMode(globalMode.Load())
}

func init() {
	globalMode.Store(int32(Park))
}
