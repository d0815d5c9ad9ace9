package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/internal/store"
)

var showAsYAML bool

var showCmd = &cobra.Command{
	Use:   "show OBJECT [REVISION]",
	Short: "Prints a stored revision of a catalog object",
	Long: `Restores the tree of OBJECT at REVISION (hex, default: latest) and prints
it as an element dump or, with --yaml, as YAML that commit accepts again.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		rev, err := revisionArg(cmd, svc.Latest, args[0], args[1:])
		if err != nil {
			return err
		}
		n, err := svc.Restore(cmd.Context(), args[0], rev)
		if err != nil {
			return err
		}

		if showAsYAML {
			out, err := n.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), n.String())
		return err
	},
}

func init() {
	showCmd.Flags().BoolVar(&showAsYAML, "yaml", false, "Print the tree as YAML")
	rootCmd.AddCommand(showCmd)
}

// parseRevision parses a revision as printed by RevisionID.String.
func parseRevision(s string) (store.RevisionID, error) {
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", store.ErrInvalidRevision, s)
	}
	return store.RevisionID(n), nil
}

// revisionArg returns the revision in rest, or the latest one of objectID.
func revisionArg(
	cmd *cobra.Command,
	latest func(ctx context.Context, objectID string) (store.RevisionID, error),
	objectID string,
	rest []string,
) (store.RevisionID, error) {
	if len(rest) > 0 {
		return parseRevision(rest[0])
	}
	return latest(cmd.Context(), objectID)
}
