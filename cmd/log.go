package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/internal/util"
)

var logFilterExpr string

var (
	logHeaderStyle = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	logCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

var logCmd = &cobra.Command{
	Use:   "log [OBJECT...]",
	Short: "Lists stored revisions",
	Long: `Lists the stored revisions of all objects, or of the given ones.
Revisions can be selected with a filter expression, for example

  cattree log --filter 'Patch() && Added("procedure:Insert")'
  cattree log --filter 'Changed("table:orders") || HasAttr("partitioned")'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := util.CompileFilter(logFilterExpr)
		if err != nil {
			return err
		}

		rs, _, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		entries, err := util.CollectRevisions(rs, nil, prog)
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.HiddenBorder()).
			Headers("OBJECT", "REVISION", "KIND", "PREVIOUS", "EDITS", "SIZE", "COMMITTED").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return logHeaderStyle
				}
				return logCellStyle
			})
		for _, e := range entries {
			if len(args) > 0 && !util.NewRevisionEnv(e).Object(args...) {
				continue
			}
			kind, previous, edits := "snapshot", "-", "-"
			if e.Patch != nil {
				kind = "patch"
				previous = e.Patch.PreviousID.String()
				edits = humanize.Comma(int64(e.Patch.Diff.Stats().Edits()))
			} else if e.RevisionID > 0 {
				previous = e.Snapshot.PreviousID.String()
			}
			t.Row(e.ObjectID, e.RevisionID.String(), kind, previous, edits,
				humanize.Bytes(uint64(e.Size)), humanize.Time(e.Time))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	},
}

func init() {
	logCmd.Flags().StringVarP(&logFilterExpr, "filter", "f", "All()",
		"Filter expression to select which revisions to list")
	rootCmd.AddCommand(logCmd)
}

