package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/internal/service"
	"github.com/loog-project/cattree/internal/watch"
	"github.com/loog-project/cattree/pkg/tree"
)

var watchCmd = &cobra.Command{
	Use:   "watch TREE.yaml...",
	Short: "Commits tree files whenever they change",
	Long: `Commits every tree file once and then again whenever it is written or
replaced, until interrupted. The object ID of a file is its name without the
.yaml or .yml extension.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		mux, err := watch.New(ctx)
		if err != nil {
			return err
		}
		defer mux.Stop()

		out := cmd.OutOrStdout()
		for _, path := range args {
			objectID := watch.ObjectIDFromPath(path)
			if err := mux.Add(objectID, path); err != nil {
				return err
			}
			n, err := tree.LoadFile(path)
			if err != nil {
				return err
			}
			commitWatched(ctx, out, svc, objectID, n)
		}
		setupLog.Info().Strs("files", mux.GetWatchedFiles()).Msg("Watching for changes, press Ctrl+C to stop")

		runWatchCollector(ctx, out, mux, svc)

		stats := svc.CacheStats()
		setupLog.Info().
			Uint64("cache-hits", stats.Hits).
			Uint64("cache-misses", stats.Misses).
			Msg("Stopped watching")
		return nil
	},
}

// runWatchCollector commits the trees of the mux until ctx is done.
func runWatchCollector(ctx context.Context, out io.Writer, mux *watch.TreeMux, svc *service.TrackerService) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-mux.ResultChan():
			if !ok {
				return
			}
			if ev.Err != nil {
				log.Warn().Err(ev.Err).Str("path", ev.Path).Msg("Skipping unreadable tree file")
				continue
			}
			commitWatched(ctx, out, svc, ev.ObjectID, ev.Tree)
		}
	}
}

func commitWatched(ctx context.Context, out io.Writer, svc *service.TrackerService, objectID string, n *tree.Node) {
	l := log.With().Str("object", objectID).Logger()

	rev, err := svc.Commit(ctx, objectID, n)
	var noChange *service.NoChangeError
	if errors.As(err, &noChange) {
		l.Debug().Stringer("revision", noChange.Revision).Msg("Tree unchanged, skipping commit")
		return
	}
	if err != nil {
		l.Error().Err(err).Msg("Error committing to tracker service")
		return
	}
	_, _ = fmt.Fprintf(out, "%s@%s %s\n", objectID, rev, n.FragmentID())
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
