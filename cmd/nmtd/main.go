// Command nmtd runs the neural machine translation gateway. Grounded on
// the teacher's internal/testctl/cobra_root.go for the cobra root/
// subcommand wiring pattern (the teacher's own cmd/modeld/main.go used
// bare flag.String; this CLI graduates to cobra, already a require in
// the teacher's go.mod for its testctl tool, for the now-two-subcommand
// surface spec.md §6.3/SPEC_FULL.md §3 calls for).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nmtd",
		Short: "Neural machine translation gateway",
	}
	root.AddCommand(buildServeCmd())
	root.AddCommand(buildPreloadCmd())
	return root
}
