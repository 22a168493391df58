package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand adds a `version` subcommand to root.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := Full()
			if short {
				out = Short()
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the release tag")

	root.AddCommand(cmd)
	root.Version = Short()
}
