package clientcmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stationkit/redeemq/internal/queue"
)

// NewListCommand prints the local queue entries, optionally CEL-filtered.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued redemptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			filter, err := queue.NewFilter(expr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			env, err := openQueueEnv(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer env.close()

			for _, e := range env.queue.List() {
				if !filter.Match(e) {
					continue
				}
				out, _ := json.Marshal(e)
				fmt.Println(string(out))
			}
			return nil
		},
	}
	cmd.Flags().String("filter", "", `CEL filter, e.g. 'status == "failed" && attempts > 2'`)
	return cmd
}

// NewRemoveCommand cancels a queued redemption.
func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <voucher-code>",
		Short: "Remove a queued redemption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openQueueEnv(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer env.close()

			id := queue.EntryID(env.cfg.StationID, args[0])
			env.queue.Remove(id)
			fmt.Printf("removed %s\n", id)
			return nil
		},
	}
}

// NewDrainCommand flushes the queue until it is empty or the timeout expires.
func NewDrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Deliver queued redemptions until the queue is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")

			env, err := openQueueEnv(cmd, nil, nil)
			if err != nil {
				return err
			}
			defer env.close()

			deadline := time.Now().Add(timeout)
			for {
				env.queue.Flush()
				remaining := env.queue.List()
				if len(remaining) == 0 {
					fmt.Println("queue drained")
					return nil
				}
				if time.Now().After(deadline) {
					return fmt.Errorf("drain timed out with %d entries remaining", len(remaining))
				}
				time.Sleep(500 * time.Millisecond)
			}
		},
	}
	cmd.Flags().Duration("timeout", 2*time.Minute, "Give up after this long")
	return cmd
}
