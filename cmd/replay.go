package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loog-project/cattree/internal/replica"
)

var replayReplicas int

var replayCmd = &cobra.Command{
	Use:   "replay OBJECT",
	Short: "Replays all revisions through independent replicas",
	Long: `Encodes every stored revision of OBJECT as a message, delivers the stream
to N independent replicas concurrently and checks that all of them end up with
the tree of the latest revision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		objectID := args[0]
		if replayReplicas < 1 {
			return fmt.Errorf("--replicas must be at least 1, got %d", replayReplicas)
		}

		rs, svc, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		latest, err := svc.Latest(cmd.Context(), objectID)
		if err != nil {
			return err
		}
		head, err := svc.Restore(cmd.Context(), objectID, latest)
		if err != nil {
			return err
		}

		msgs, err := replica.Feed(cmd.Context(), rs, objectID, replica.FromStart)
		if err != nil {
			return err
		}
		payloads := make([][]byte, len(msgs))
		total := 0
		for i, m := range msgs {
			if payloads[i], err = replica.Encode(nil, m); err != nil {
				return err
			}
			total += len(payloads[i])
		}

		replicas := make([]*replica.Replica, replayReplicas)
		for i := range replicas {
			replicas[i] = replica.New("replica-"+strconv.Itoa(i), nil)
		}

		start := time.Now()
		if err := replica.Broadcast(cmd.Context(), replicas, payloads); err != nil {
			return err
		}
		took := time.Since(start)

		want := head.FragmentID()
		for _, r := range replicas {
			got, ok := r.Fingerprint(objectID)
			if !ok || got != want {
				return fmt.Errorf("%w: %s has %s, store has %s", replica.ErrDiverged, r.Name(), got, want)
			}
		}
		log.Debug().Int("messages", len(payloads)).Int("replicas", len(replicas)).Dur("took", took).
			Msg("replay finished")

		_, _ = fmt.Fprintf(cmd.OutOrStdout(),
			"%d messages (%s) delivered to %d replicas in %s, all at %s@%s %s\n",
			len(payloads), humanize.Bytes(uint64(total)), len(replicas), took.Round(time.Microsecond),
			objectID, latest, want)
		return nil
	},
}

func init() {
	replayCmd.Flags().IntVarP(&replayReplicas, "replicas", "n", 4, "Number of independent replicas")
	rootCmd.AddCommand(replayCmd)
}
