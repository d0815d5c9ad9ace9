package cmd

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump OBJECT REVISION",
	Short: "Dumps the raw stored record of a revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, err := parseRevision(args[1])
		if err != nil {
			return err
		}

		rs, _, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		snap, patch, err := rs.Get(cmd.Context(), args[0], rev)
		if err != nil {
			return err
		}

		cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
		if snap != nil {
			cfg.Fdump(cmd.OutOrStdout(), snap)
		} else {
			cfg.Fdump(cmd.OutOrStdout(), patch)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
