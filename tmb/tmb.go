package tmb

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
	"github.com/e1z0/mediacore/reader"
)

// TMB resolves timeline positions to decoded frames/audio across many
// tracks, pooling Readers and caching just enough to avoid redundant
// Reader calls. One TMB instance typically backs one open sequence.
type TMB struct {
	open decoder.OpenFunc
	opts Options

	clipsMu      sync.RWMutex
	clipsByTrack map[string][]ClipInfo
	seqRate      ratetime.Rate

	pool       *readerPool
	videoCache sync.Map // trackID -> *trackVideoCache

	playhead *playheadManager
}

// New builds a TMB. open is the decoder backend (decoder/astiav.Open in
// production, a synthetic backend in tests).
func New(open decoder.OpenFunc, opts Options) *TMB {
	opts = opts.withDefaults()
	t := &TMB{
		open:         open,
		opts:         opts,
		clipsByTrack: make(map[string][]ClipInfo),
		pool:         newReaderPool(opts.MaxReaders),
	}
	t.playhead = newPlayheadManager(t, opts.PrebufferJobs, opts.PrebufferWorker)
	return t
}

// Close stops the prebuffer workers and closes every pooled Reader.
func (t *TMB) Close() {
	t.playhead.close()
	t.pool.releaseAll()
}

// SetSeqRate sets the timeline's sequence rate; must be called before any
// microsecond-based query.
func (t *TMB) SetSeqRate(rate ratetime.Rate) {
	t.clipsMu.Lock()
	defer t.clipsMu.Unlock()
	t.seqRate = rate
}

// SetTrackClips replaces a track's clip list, sorted by TimelineStart.
func (t *TMB) SetTrackClips(trackID string, clips []ClipInfo) {
	sorted := make([]ClipInfo, len(clips))
	copy(sorted, clips)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimelineStart < sorted[j].TimelineStart })

	t.clipsMu.Lock()
	t.clipsByTrack[trackID] = sorted
	t.clipsMu.Unlock()

	if vc, ok := t.videoCache.Load(trackID); ok {
		vc.(*trackVideoCache).clear()
	}
}

func (t *TMB) trackVideoCacheFor(trackID string) *trackVideoCache {
	if vc, ok := t.videoCache.Load(trackID); ok {
		return vc.(*trackVideoCache)
	}
	vc := newTrackVideoCache(t.opts.VideoCacheSize)
	actual, _ := t.videoCache.LoadOrStore(trackID, vc)
	return actual.(*trackVideoCache)
}

// findClip returns the clip covering timeline frame f on trackID, and
// whether one was found. Clips are sorted and non-overlapping, so a
// binary search on TimelineStart finds the only candidate.
func (t *TMB) findClip(trackID string, f int64) (ClipInfo, bool) {
	t.clipsMu.RLock()
	clips := t.clipsByTrack[trackID]
	t.clipsMu.RUnlock()

	if len(clips) == 0 {
		return ClipInfo{}, false
	}
	i := sort.Search(len(clips), func(i int) bool { return clips[i].TimelineStart > f })
	if i == 0 {
		return ClipInfo{}, false
	}
	c := clips[i-1]
	if !c.contains(f) {
		return ClipInfo{}, false
	}
	return c, true
}

// sourceCoords converts a timeline frame on clip c to the clip's own
// source frame and microsecond position.
func sourceCoords(c ClipInfo, timelineFrame int64) (sourceFrame int64, sourceUS ratetime.TimeUS) {
	sourceFrame = c.SourceIn + (timelineFrame - c.TimelineStart)
	sourceUS = ratetime.NewFrameTime(sourceFrame, c.Rate).ToUS()
	return
}

func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return path
}

func (t *TMB) readerFor(trackID string, c ClipInfo) (*reader.Reader, error) {
	path := canonicalPath(c.MediaPath)
	key := poolKey{trackID: trackID, path: path}
	return t.pool.get(key, func(p string) (*reader.Reader, error) {
		return reader.Create(t.open, p)
	})
}

// LookupFrame resolves a timeline frame for trackID to a decoded video
// frame, or a gap/offline signal if none applies.
func (t *TMB) LookupFrame(trackID string, timelineFrame int64) (*frame.Frame, LookupResult, error) {
	vc := t.trackVideoCacheFor(trackID)
	if e, ok := vc.get(timelineFrame); ok {
		return e.frame, LookupResult{
			ClipID:         e.clipID,
			SourceFrame:    e.sourceFrame,
			Rotation:       e.rotation,
			ClipFPS:        e.clipFPS,
			ClipStartFrame: e.clipStartFrame,
			ClipEndFrame:   e.clipEndFrame,
		}, nil
	}

	c, ok := t.findClip(trackID, timelineFrame)
	if !ok {
		return nil, LookupResult{Gap: true}, nil
	}

	path := canonicalPath(c.MediaPath)
	if err, offline := t.pool.isOffline(path); offline {
		return nil, LookupResult{Offline: true, ClipID: c.ClipID}, err
	}

	r, err := t.readerFor(trackID, c)
	if err != nil {
		return nil, LookupResult{Offline: true, ClipID: c.ClipID}, err
	}

	sourceFrame, sourceUS := sourceCoords(c, timelineFrame)
	f, err := r.DecodeAtUS(sourceUS)
	if err != nil {
		return nil, LookupResult{}, err
	}

	rotation := r.MediaInfo().Rotation
	vc.put(timelineFrame, videoCacheEntry{
		clipID:         c.ClipID,
		sourceFrame:    sourceFrame,
		rotation:       rotation,
		clipFPS:        c.Rate,
		clipStartFrame: c.TimelineStart,
		clipEndFrame:   c.timelineEnd(),
		frame:          f,
	})

	return f, LookupResult{
		ClipID:         c.ClipID,
		SourceFrame:    sourceFrame,
		Rotation:       rotation,
		ClipFPS:        c.Rate,
		ClipStartFrame: c.TimelineStart,
		ClipEndFrame:   c.timelineEnd(),
	}, nil
}

// LookupFrameUS is LookupFrame's microsecond-timeline-coordinate form.
func (t *TMB) LookupFrameUS(trackID string, timelineUS ratetime.TimeUS) (*frame.Frame, LookupResult, error) {
	t.clipsMu.RLock()
	seqRate := t.seqRate
	t.clipsMu.RUnlock()
	if !seqRate.Valid() {
		return nil, LookupResult{}, mediaerr.NewInvalidArg("LookupFrameUS: sequence rate not set")
	}
	ft := ratetime.FrameTimeFromUS(timelineUS, seqRate)
	return t.LookupFrame(trackID, ft.Frame)
}

// SetPlayhead reports trackID's current play position so the prebuffer
// workers can warm the next clip ahead of a boundary crossing. direction
// is -1/0/+1; speed is informational only in v1 (no variable-speed
// lookahead distance yet).
func (t *TMB) SetPlayhead(trackID string, timelineFrame int64, direction int, speed float64) {
	t.playhead.SetPlayhead(trackID, timelineFrame, direction, speed)
}

// ProbeFile opens path just long enough to read its MediaFileInfo, then
// closes it. Shares the decoder abstraction with Reader but never touches
// the pool.
func (t *TMB) ProbeFile(path string) (decoder.MediaFileInfo, error) {
	d, err := t.open(path)
	if err != nil {
		return decoder.MediaFileInfo{}, err
	}
	defer d.Close()
	return d.Info(), nil
}

// ReleaseTrack removes trackID's clips, purges its video cache, and
// drops any pool entries belonging to it.
func (t *TMB) ReleaseTrack(trackID string) {
	t.clipsMu.Lock()
	delete(t.clipsByTrack, trackID)
	t.clipsMu.Unlock()

	if vc, ok := t.videoCache.LoadAndDelete(trackID); ok {
		vc.(*trackVideoCache).clear()
	}
	t.pool.releaseTrack(trackID)
	t.playhead.releaseTrack(trackID)
}

// ReleaseAll drops every track and every pool entry.
func (t *TMB) ReleaseAll() {
	t.clipsMu.Lock()
	t.clipsByTrack = make(map[string][]ClipInfo)
	t.clipsMu.Unlock()

	t.videoCache.Range(func(key, value any) bool {
		t.videoCache.Delete(key)
		return true
	})
	t.pool.releaseAll()
	t.playhead.releaseAll()
}
