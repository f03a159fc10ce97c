// Package tmb implements the Timeline Media Buffer: given a track and a
// timeline position, it resolves the active clip, acquires a pooled
// Reader for its source file, converts timeline coordinates to source
// coordinates, and serves frames/audio through a small per-track cache
// backed by the reader package.
package tmb

import "github.com/e1z0/mediacore/ratetime"

// ClipInfo places one source clip on one track's timeline. TimelineStart
// and Duration are timeline frames at the sequence rate; SourceIn is a
// source frame at the clip's own Rate.
type ClipInfo struct {
	ClipID        string
	MediaPath     string
	TimelineStart int64
	Duration      int64 // 0 means this clip never matches a lookup
	SourceIn      int64
	Rate          ratetime.Rate
	SpeedRatio    float64 // 1.0 = normal speed
}

func (c ClipInfo) timelineEnd() int64 { return c.TimelineStart + c.Duration }

func (c ClipInfo) contains(f int64) bool {
	return c.Duration > 0 && f >= c.TimelineStart && f < c.timelineEnd()
}

// LookupResult is what a timeline-frame query resolves to.
type LookupResult struct {
	Gap         bool // true: no clip covers this position, caller fills silence/black
	Offline     bool // true: the clip's media file failed to open
	ClipID      string
	SourceFrame int64
	Rotation    int
	// ClipFPS, ClipStartFrame, and ClipEndFrame describe the clip that
	// produced SourceFrame, in timeline coordinates, so a caller can tell
	// how close the returned frame is to the clip's boundaries without a
	// second lookup.
	ClipFPS        ratetime.Rate
	ClipStartFrame int64
	ClipEndFrame   int64
}

// Options configures a TMB instance.
type Options struct {
	MaxReaders      int // default 16
	VideoCacheSize  int // per-track entries, default 8
	PrebufferJobs   int // bounded queue depth, default 32
	PrebufferWorker int // worker goroutines, default 2
}

func (o Options) withDefaults() Options {
	if o.MaxReaders <= 0 {
		o.MaxReaders = 16
	}
	if o.VideoCacheSize <= 0 {
		o.VideoCacheSize = 8
	}
	if o.PrebufferJobs <= 0 {
		o.PrebufferJobs = 32
	}
	if o.PrebufferWorker <= 0 {
		o.PrebufferWorker = 2
	}
	return o
}
