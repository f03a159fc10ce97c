package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/e1z0/mediacore/decoder/astiav"
	"github.com/e1z0/mediacore/reader"
	"github.com/e1z0/mediacore/tmb"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <path>",
		Short: "Open a media file and print its static MediaFileInfo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := astiav.Open(args[0])
			if err != nil {
				return err
			}
			defer d.Close()
			info := d.Info()
			fmt.Printf("path:          %s\n", info.Path)
			fmt.Printf("video:         %v (%dx%d @ %d/%d fps, vfr=%v, rotation=%d)\n",
				info.HasVideo, info.VideoWidth, info.VideoHeight, info.VideoRate.Num, info.VideoRate.Den, info.IsVFR, info.Rotation)
			fmt.Printf("audio:         %v (%d Hz, %d ch)\n", info.HasAudio, info.AudioSampleRate, info.AudioChannels)
			fmt.Printf("duration_us:   %d\n", info.DurationUS)
			return nil
		},
	}
}

func newScrubCmd() *cobra.Command {
	var mode string
	var out string

	cmd := &cobra.Command{
		Use:   "scrub <layout.yaml> <track_id> <timeline_frame>",
		Short: "Resolve one timeline frame on a track through the TMB and print the result",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadLayout(args[0])
			if err != nil {
				return fmt.Errorf("load layout: %w", err)
			}
			trackID := args[1]
			var timelineFrame int64
			if _, err := fmt.Sscan(args[2], &timelineFrame); err != nil {
				return fmt.Errorf("invalid timeline frame %q: %w", args[2], err)
			}

			switch mode {
			case "play":
				reader.SetDecodeMode(reader.Play)
			case "scrub":
				reader.SetDecodeMode(reader.Scrub)
			case "park", "":
				reader.SetDecodeMode(reader.Park)
			default:
				return fmt.Errorf("unknown mode %q: want play, scrub, or park", mode)
			}

			m := tmb.New(astiav.Open, tmb.Options{})
			defer m.Close()
			applyLayout(m, cfg)

			f, res, err := m.LookupFrame(trackID, timelineFrame)
			if res.Offline {
				fmt.Printf("offline: clip %s failed to open\n", res.ClipID)
				return nil
			}
			if err != nil {
				return err
			}
			if res.Gap {
				fmt.Println("gap: no clip covers this position")
				return nil
			}
			fmt.Printf("clip_id:      %s\n", res.ClipID)
			fmt.Printf("source_frame: %d\n", res.SourceFrame)
			fmt.Printf("rotation:     %d\n", res.Rotation)
			fmt.Printf("clip_fps:     %d/%d\n", res.ClipFPS.Num, res.ClipFPS.Den)
			fmt.Printf("clip_range:   [%d, %d)\n", res.ClipStartFrame, res.ClipEndFrame)
			fmt.Printf("source_pts:   %d\n", f.SourcePTSUS())
			fmt.Printf("dims:         %dx%d\n", f.Width(), f.Height())

			if out != "" {
				data, err := f.Data()
				if err != nil {
					return fmt.Errorf("realize frame: %w", err)
				}
				if err := os.WriteFile(out, data, 0644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Printf("wrote %d bytes of raw BGRA to %s\n", len(data), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "park", "decode mode: play, scrub, or park")
	cmd.Flags().StringVar(&out, "out", "", "write the decoded frame's raw BGRA pixels to this file")
	return cmd
}
