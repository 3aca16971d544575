package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

// Execute runs the CLI against os.Args.
func Execute() error {
	return NewRoot(os.Stdout, os.Stderr).Execute()
}

// NewRoot builds the command tree writing to out and errOut.
func NewRoot(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "guidectl",
		Short:         "Linear-guide vibration diagnosis toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(analyzeCmd(), frequenciesCmd(), rulCmd(), versionCmd())
	return root
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
