package cmd

import (
	"io"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/internal/ui"
	"github.com/loog-project/cattree/internal/util"
)

var (
	browseFilterExpr string
	browseNoColor    bool
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Explores stored revisions in a Terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := util.CompileFilter(browseFilterExpr)
		if err != nil {
			return err
		}

		rs, svc, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		setupLog.Info().Str("store-file", storeFile).Msg("Loading revisions...")
		entries, err := util.CollectRevisions(rs, nil, prog)
		if err != nil {
			return err
		}
		if err := svc.WarmCache(cmd.Context()); err != nil {
			return err
		}

		// log lines show up in the log view (L) while the UI runs
		uiLogger := ui.NewUILogger()
		var out io.Writer = uiLogger
		level := zerolog.InfoLevel
		if debugLogFile != nil {
			out = zerolog.MultiLevelWriter(uiLogger, debugLogFile)
			level = zerolog.DebugLevel
		}
		previous := log.Logger
		log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(level)
		defer func() { log.Logger = previous }()
		log.Info().Int("revisions", len(entries)).Msg("revisions loaded")

		theme := ui.DarkTheme
		if browseNoColor {
			theme = ui.NoColorTheme
		}
		root := ui.NewRoot(theme, ui.NewRevisionView(svc),
			ui.WithLogger(uiLogger),
			ui.WithTitle(filepath.Base(storeFile)),
			ui.WithRevisions(entries))
		program := tea.NewProgram(root, tea.WithAltScreen())
		uiLogger.Attach(program)

		_, err = program.Run()
		return err
	},
}

func init() {
	browseCmd.Flags().StringVarP(&browseFilterExpr, "filter", "f", "All()",
		"Filter expression to select which revisions to show")
	browseCmd.Flags().BoolVar(&browseNoColor, "no-color", false, "Render without colors")
	rootCmd.AddCommand(browseCmd)
}
