package main

import (
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/e1z0/mediacore/ratetime"
	"github.com/e1z0/mediacore/tmb"
)

// RateConfig is the YAML-facing rational rate; ratetime.Rate itself has no
// yaml tags since it is a shared cross-package type.
type RateConfig struct {
	Num int32 `yaml:"num"`
	Den int32 `yaml:"den"`
}

func (r RateConfig) toRate() ratetime.Rate { return ratetime.Rate{Num: r.Num, Den: r.Den} }

// ClipConfig is one YAML clip entry on a track.
type ClipConfig struct {
	ClipID        string     `yaml:"clip_id,omitempty"`
	MediaPath     string     `yaml:"media_path"`
	TimelineStart int64      `yaml:"timeline_start"`
	Duration      int64      `yaml:"duration"`
	SourceIn      int64      `yaml:"source_in,omitempty"`
	Rate          RateConfig `yaml:"rate"`
	SpeedRatio    float64    `yaml:"speed_ratio,omitempty"`
}

// TrackConfig is one track's clip list.
type TrackConfig struct {
	ID    string       `yaml:"id"`
	Clips []ClipConfig `yaml:"clips"`
}

// LayoutConfig is the top-level YAML document accepted by the scrub
// command: a sequence rate plus per-track clip lists, mirroring the
// original's "Lua passes current clip + next 1-3 clips per track" shape
// flattened into a single static file for CLI exercise.
type LayoutConfig struct {
	SequenceRate RateConfig    `yaml:"sequence_rate"`
	Tracks       []TrackConfig `yaml:"tracks"`
}

func loadLayout(path string) (LayoutConfig, error) {
	var cfg LayoutConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	for ti := range cfg.Tracks {
		for ci := range cfg.Tracks[ti].Clips {
			c := &cfg.Tracks[ti].Clips[ci]
			if c.ClipID == "" {
				c.ClipID = uuid.NewString()
			}
			if c.SpeedRatio == 0 {
				c.SpeedRatio = 1.0
			}
		}
	}
	return cfg, nil
}

// applyLayout pushes every track's clip list (and the sequence rate) into
// m.
func applyLayout(m *tmb.TMB, cfg LayoutConfig) {
	m.SetSeqRate(cfg.SequenceRate.toRate())
	for _, track := range cfg.Tracks {
		clips := make([]tmb.ClipInfo, len(track.Clips))
		for i, c := range track.Clips {
			clips[i] = tmb.ClipInfo{
				ClipID:        c.ClipID,
				MediaPath:     c.MediaPath,
				TimelineStart: c.TimelineStart,
				Duration:      c.Duration,
				SourceIn:      c.SourceIn,
				Rate:          c.Rate.toRate(),
				SpeedRatio:    c.SpeedRatio,
			}
		}
		m.SetTrackClips(track.ID, clips)
	}
}
