package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-synth/analysis"
	"github.com/cwbudde/algo-synth/internal/wavio"
	"github.com/cwbudde/algo-synth/preset"
	"github.com/cwbudde/algo-synth/session"
)

type renderOptions struct {
	config string
	out    string
	bars   int
	watch  bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the demo project to a WAV file",
		Long: `Builds the demo project (two synth tracks, two scenes and a bass
timeline placement), plays it for the requested number of bars and writes
the result as 16-bit stereo WAV.

Examples:
  synth render --out out/demo.wav --bars 8
  synth render --config live.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "Preset file (JSON or YAML)")
	f.StringVarP(&opts.out, "out", "o", "output.wav", "Output WAV path")
	f.IntVarP(&opts.bars, "bars", "b", 8, "Length in 4/4 bars")
	f.BoolVarP(&opts.watch, "watch", "w", false, "Reload track settings and tempo when the config file changes")
	return cmd
}

func runRender(ctx context.Context, stdout, stderr io.Writer, opts renderOptions) error {
	if opts.bars < 1 {
		return fmt.Errorf("bars must be >= 1, got %d", opts.bars)
	}
	if opts.watch && opts.config == "" {
		return fmt.Errorf("--watch requires --config")
	}
	p := preset.Default()
	if opts.config != "" {
		var err error
		if p, err = preset.Load(opts.config); err != nil {
			return err
		}
	}
	level, err := session.ParseLevel(p.Config.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	s, err := session.New(p.Config, session.WithLogger(logger))
	if err != nil {
		return err
	}
	d, err := buildDemo(s, p.SamplePath)
	if err != nil {
		return fmt.Errorf("build demo: %w", err)
	}
	if err := p.ApplyTracks(s); err != nil {
		return err
	}

	watch := ""
	if opts.watch {
		watch = opts.config
	}
	samples, err := render(ctx, s, d, float64(4*opts.bars), watch, logger)
	if err != nil {
		return err
	}
	sr := int(math.Round(s.Config().SampleRate))
	if err := wavio.WriteStereo(opts.out, samples, sr); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	logger.Info("render written", "path", opts.out, "frames", len(samples)/2)
	return printSummary(stdout, samples, sr)
}

// render plays d for beats beats at the starting tempo and returns the
// interleaved output. The audio goroutine renders one block at a time and
// hands control to the control goroutine after each, so scene launches land
// on the same block in every run. With watchPath set, a third goroutine
// reloads the preset and the control goroutine applies its tempo and track
// settings.
func render(parent context.Context, s *session.Session, d *demo, beats float64, watchPath string, logger *slog.Logger) ([]float32, error) {
	cfg := s.Config()
	frames := int(math.Round(beats * 60 / s.Tempo() * cfg.SampleRate))
	out := make([]float32, 2*frames)
	eng := s.Engine()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	rendered := make(chan struct{})
	resume := make(chan struct{})
	reloads := make(chan *preset.Preset, 1)

	if err := s.LaunchScene(d.scenes[0]); err != nil {
		return nil, err
	}
	s.Play()

	g.Go(func() error {
		defer close(rendered)
		for done := 0; done < frames; {
			n := min(cfg.MaxBlock, frames-done)
			eng.Process(out[2*done : 2*(done+n)])
			done += n
			select {
			case rendered <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case <-resume:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		// Stops the watcher once the last block is in.
		defer cancel()
		next := 1
		for range rendered {
			rb := s.Poll()
			select {
			case p := <-reloads:
				if err := applyReload(s, p); err != nil {
					return err
				}
				logger.Info("preset reloaded", "tempo", p.Config.Tempo)
			default:
			}
			if rb.BeatPosition >= float64(next)*d.scenePeriod {
				if err := s.LaunchScene(d.scenes[next%len(d.scenes)]); err != nil {
					return err
				}
				next++
			}
			select {
			case resume <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		s.Stop()
		s.Poll()
		return nil
	})

	if watchPath != "" {
		g.Go(func() error {
			return preset.Watch(gctx, watchPath, func(p *preset.Preset, err error) {
				if err != nil {
					logger.Warn("preset reload failed", "path", watchPath, "err", err)
					return
				}
				select {
				case reloads <- p:
				default:
				}
			})
		})
	}

	err := g.Wait()
	if perr := parent.Err(); perr != nil {
		return nil, perr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	return out, nil
}

func applyReload(s *session.Session, p *preset.Preset) error {
	if err := s.SetTempo(p.Config.Tempo); err != nil {
		return err
	}
	return p.ApplyTracks(s)
}

func printSummary(w io.Writer, stereo []float32, sampleRate int) error {
	left, right := analysis.Deinterleave(stereo)
	mono := analysis.Mono(stereo)
	fmt.Fprintf(w, "Frames:   %d (%.2fs @ %d Hz)\n", len(mono), float64(len(mono))/float64(sampleRate), sampleRate)
	fmt.Fprintf(w, "Peak:     L %.1f dBFS  R %.1f dBFS\n", analysis.DB(analysis.Peak(left)), analysis.DB(analysis.Peak(right)))
	fmt.Fprintf(w, "RMS:      %.1f dBFS\n", analysis.DB(analysis.RMS(mono)))
	freq, err := analysis.DominantFrequency(mono, sampleRate)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Dominant: %.1f Hz\n", freq)
	return nil
}
