package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/internal/service"
	"github.com/loog-project/cattree/pkg/tree"
)

var commitCmd = &cobra.Command{
	Use:   "commit OBJECT TREE.yaml",
	Short: "Records a new version of a catalog object",
	Long: `Loads the tree from the YAML file and stores it as the next revision of
OBJECT, either as a full snapshot or as a diff against the latest revision.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		objectID, path := args[0], args[1]

		n, err := tree.LoadFile(path)
		if err != nil {
			return err
		}

		_, svc, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		rev, err := svc.Commit(cmd.Context(), objectID, n)
		var noChange *service.NoChangeError
		if errors.As(err, &noChange) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged at revision %s\n", objectID, noChange.Revision)
			return nil
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s %s\n", objectID, rev, n.FragmentID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
