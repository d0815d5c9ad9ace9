package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/pkg/tree"
)

var fingerprintFull bool

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint TREE.yaml...",
	Short: "Prints the fragment ID of catalog trees",
	Long: `Prints the fragment ID (SHA-1 of the canonical serialization) of every
tree file. With --full the canonical serialization itself is printed, quoted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			n, err := tree.LoadFile(path)
			if err != nil {
				return err
			}
			if fingerprintFull {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", strconv.Quote(n.Fingerprint()), path)
				continue
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", n.FragmentID(), path)
		}
		return nil
	},
}

func init() {
	fingerprintCmd.Flags().BoolVar(&fingerprintFull, "full", false, "Print the canonical serialization")
	rootCmd.AddCommand(fingerprintCmd)
}
