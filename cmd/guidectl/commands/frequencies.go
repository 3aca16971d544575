package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

type frequencyOutput struct {
	Geometry    types.Geometry     `json:"geometry"`
	Velocity    float64            `json:"velocity"`
	Frequencies types.FrequencySet `json:"frequencies"`
	Harmonics   []guide.Harmonic   `json:"harmonics"`
}

func frequenciesCmd() *cobra.Command {
	var (
		velocity float64
		series   string
		diameter float64
		length   float64
		balls    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "frequencies",
		Short: "Print theoretical fault frequencies",
		Long: "Derive BPF, BSF, cage frequency and the first five BPF harmonics from a " +
			"series code or explicit geometry. Explicit flags override the series catalog.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if velocity < 0 {
				return fmt.Errorf("--velocity must not be negative")
			}
			geom, known := guide.Resolve(series)
			if !known && series != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown series %q, using default geometry\n", series)
			}
			if diameter > 0 {
				geom.BallDiameterMM = diameter
			}
			if length > 0 {
				geom.RacewayLengthMM = length
			}
			if balls > 0 {
				geom.BallCount = balls
			}

			set := guide.Frequencies(geom, velocity)
			res := frequencyOutput{
				Geometry:    geom,
				Velocity:    velocity,
				Frequencies: set,
				Harmonics:   guide.Harmonics(set, 5),
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Geometry\tD=%.2f mm  L=%.1f mm  n=%d\n", geom.BallDiameterMM, geom.RacewayLengthMM, geom.BallCount)
			fmt.Fprintf(tw, "BPF\t%.2f Hz\n", set.BPF)
			fmt.Fprintf(tw, "BSF\t%.2f Hz\n", set.BSF)
			fmt.Fprintf(tw, "Cage\t%.2f Hz\n", set.CageFreq)
			for _, h := range res.Harmonics {
				fmt.Fprintf(tw, "%dxBPF\t%.2f Hz\n", h.Order, h.Frequency)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&velocity, "velocity", 0, "carriage velocity in m/s")
	cmd.Flags().StringVar(&series, "series", "HRC25", "guide series code")
	cmd.Flags().Float64Var(&diameter, "ball-diameter", 0, "ball diameter in mm")
	cmd.Flags().Float64Var(&length, "length", 0, "raceway length in mm")
	cmd.Flags().IntVar(&balls, "balls", 0, "balls in the loaded zone")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
