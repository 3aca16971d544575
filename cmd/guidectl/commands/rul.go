package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guidesense/guidesense/pkg/rul"
)

type rulOutput struct {
	rul.Estimate
	Bearing string   `json:"bearing,omitempty"`
	Actual  *float64 `json:"actual_rul_min,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

func rulCmd() *cobra.Command {
	var (
		kurtosis []float64
		bearing  string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "rul",
		Short: "Baseline remaining useful life from a kurtosis history",
		Long: "Predict remaining useful life from the latest value of a chronological " +
			"kurtosis history. --bearing scores the prediction against a PHM 2012 " +
			"training bearing with known life.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rulOutput{Estimate: rul.Baseline(kurtosis)}
			if bearing != "" {
				actual, ok := rul.ActualRUL(bearing)
				if !ok {
					return fmt.Errorf("unknown training bearing %q", bearing)
				}
				score := rul.Score(out.PredictedMinutes, actual)
				out.Bearing, out.Actual, out.Score = bearing, &actual, &score
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Predicted RUL: %.0f min (model %s, confidence %.1f)\n",
				out.PredictedMinutes, out.Model, out.Confidence)
			fmt.Fprintf(w, "Latest kurtosis: %.2f over %d points\n", out.LatestKurtosis, out.DataPoints)
			if out.Score != nil {
				fmt.Fprintf(w, "%s actual RUL: %.0f min, score %.4g\n", out.Bearing, *out.Actual, *out.Score)
			}
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&kurtosis, "kurtosis", nil, "kurtosis history, oldest first (comma separated)")
	cmd.Flags().StringVar(&bearing, "bearing", "", "PHM 2012 training bearing to score against, e.g. Bearing1_1")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
