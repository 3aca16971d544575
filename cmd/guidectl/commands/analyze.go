package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidesense/guidesense/pkg/diagnosis"
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/pkg/waveform"
)

func analyzeCmd() *cobra.Command {
	var (
		fs       int
		velocity float64
		series   string
		preload  string
		format   string
		column   int
		axis     string
		asJSON   bool
		timeout  time.Duration
		maxN     int
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Diagnose one waveform file",
		Long: "Decode a single-axis capture (CSV column, PHM 2012 acceleration file or JSON " +
			"waveform) and run the full diagnosis pipeline on it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = formatFromPath(path)
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			w, err := waveform.Decode(f, waveform.Options{Format: format, Column: column, Axis: axis, MaxSamples: maxN})
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			w.ApplyDefaults(fs, velocity)
			if cmd.Flags().Changed("fs") {
				w.SamplingRate = fs
			}
			if cmd.Flags().Changed("velocity") {
				w.Velocity = velocity
			}
			if w.SamplingRate <= 0 {
				return fmt.Errorf("sampling rate unknown: pass --fs")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rep, err := diagnosis.New().Analyze(ctx, types.Sample{
				Samples:      w.Samples,
				SamplingRate: w.SamplingRate,
				Velocity:     w.Velocity,
				Guide:        types.GuideIdentity{Series: series, Preload: preload},
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&fs, "fs", 0, "sampling rate in Hz (overrides the file)")
	cmd.Flags().Float64Var(&velocity, "velocity", 0, "carriage velocity in m/s (overrides the file)")
	cmd.Flags().StringVar(&series, "series", "HRC25", "guide series code")
	cmd.Flags().StringVar(&preload, "preload", guide.DefaultPreloadClass, "preload class: VC|V0|V1|V2")
	cmd.Flags().StringVar(&format, "format", "", "csv|phm|json (default from the file extension)")
	cmd.Flags().IntVar(&column, "column", 0, "zero-based CSV column")
	cmd.Flags().StringVar(&axis, "axis", "horizontal", "PHM channel: horizontal|vertical")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the wavelet stage after this long")
	cmd.Flags().IntVar(&maxN, "max-samples", 1<<22, "reject captures longer than this")
	return cmd
}

// formatFromPath picks a decoder from the file name. PHM 2012 files are
// named acc_NNNNN.csv.
func formatFromPath(path string) string {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(base, ".json"):
		return waveform.FormatJSON
	case strings.HasPrefix(base, "acc_"):
		return waveform.FormatPHM
	default:
		return waveform.FormatCSV
	}
}

func printReport(out io.Writer, r *types.DiagnosisReport) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Health score\t%.1f (%s)\n", r.HealthScore, r.Severity)
	fmt.Fprintf(tw, "Guide\t%s preload %s\n", r.Series, r.Preload)
	fmt.Fprintf(tw, "Samples\t%d @ %d Hz, v=%.3f m/s\n", r.SampleCount, r.SamplingRate, r.Velocity)
	fmt.Fprintf(tw, "BPF / BSF / Cage\t%.2f / %.2f / %.2f Hz\n", r.Frequencies.BPF, r.Frequencies.BSF, r.Frequencies.CageFreq)
	fmt.Fprintf(tw, "RMS / Kurtosis / Crest\t%.4f / %.2f / %.2f\n", r.TimeFeatures.RMS, r.TimeFeatures.Kurtosis, r.TimeFeatures.CrestFactor)
	fmt.Fprintf(tw, "Preload\t%s\n", r.PreloadStatus.Condition)
	fmt.Fprintf(tw, "NA4 / CWT NP4\t%.2f / %.2f\n", r.HigherOrderFeatures.NA4, r.WaveletFeatures.CWTNP4)
	fmt.Fprintf(tw, "Envelope band\t%.0f-%.0f Hz, %d BPF harmonics\n",
		r.EnvelopeFeatures.ResonanceBand[0], r.EnvelopeFeatures.ResonanceBand[1], len(r.EnvelopeFeatures.Detections))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nFindings:")
	for _, f := range r.Findings {
		fmt.Fprintf(out, "  - %s\n", f)
	}
	fmt.Fprintln(out, "Recommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(out, "  - %s\n", rec)
	}
	for _, o := range []struct {
		stage string
		o     types.Outcome
	}{
		{"time", r.TimeFeatures.Outcome},
		{"frequency", r.FrequencyFeatures.Outcome},
		{"envelope", r.EnvelopeFeatures.Outcome},
		{"higher-order", r.HigherOrderFeatures.Outcome},
		{"wavelet", r.WaveletFeatures.Outcome},
	} {
		if o.o.Degraded {
			fmt.Fprintf(out, "note: %s stage degraded: %s\n", o.stage, o.o.Note)
		}
	}
	return nil
}
