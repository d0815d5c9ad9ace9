package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/pkg/diffpreview"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

var (
	diffPlain         bool
	diffRaw           bool
	diffHideUnchanged bool
	diffObject        string
)

var diffCmd = &cobra.Command{
	Use:   "diff OLD NEW",
	Short: "Shows the differences between two catalog trees",
	Long: `Compares two tree YAML files, or with --object two stored revisions of
that object, and prints the annotated result.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, b, err := loadDiffSides(cmd, args)
		if err != nil {
			return err
		}

		if diffRaw {
			d, err := treediff.Compute(a, b)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), d.String())
			return err
		}

		theme, opts := diffpreview.DarkTheme, diffpreview.DefaultRenderOptions
		if diffPlain {
			theme = diffpreview.PlainTheme
			opts.EnableBackgroundHighlight = false
			opts.Markers = true
		}
		opts.HideUnchanged = diffHideUnchanged

		out, err := diffpreview.RenderWithOptions(a, b, theme, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func loadDiffSides(cmd *cobra.Command, args []string) (*tree.Node, *tree.Node, error) {
	if diffObject == "" {
		a, err := tree.LoadFile(args[0])
		if err != nil {
			return nil, nil, err
		}
		b, err := tree.LoadFile(args[1])
		if err != nil {
			return nil, nil, err
		}
		return a, b, nil
	}

	from, err := parseRevision(args[0])
	if err != nil {
		return nil, nil, err
	}
	to, err := parseRevision(args[1])
	if err != nil {
		return nil, nil, err
	}

	_, svc, closeStore, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	defer closeStore()

	a, err := svc.Restore(cmd.Context(), diffObject, from)
	if err != nil {
		return nil, nil, err
	}
	b, err := svc.Restore(cmd.Context(), diffObject, to)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func init() {
	diffCmd.Flags().BoolVar(&diffPlain, "plain", false, "Print without colors, with +/-/~ markers")
	diffCmd.Flags().BoolVar(&diffRaw, "raw", false, "Print the diff structure instead of the annotated tree")
	diffCmd.Flags().BoolVar(&diffHideUnchanged, "hide-unchanged", false, "Skip unchanged attributes and subtrees")
	diffCmd.Flags().StringVar(&diffObject, "object", "", "Compare two stored revisions of this object")
	rootCmd.AddCommand(diffCmd)
}
