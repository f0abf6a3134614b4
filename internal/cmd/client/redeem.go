package clientcmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stationkit/redeemq/internal/client"
	"github.com/stationkit/redeemq/internal/queue"
)

// NewRedeemCommand enqueues a voucher redemption into the local durable
// queue and optionally waits for a terminal outcome.
func NewRedeemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redeem <voucher-code>",
		Short: "Queue a voucher redemption",
		Long: "Queues a redemption into the local durable store and delivers it to the " +
			"server, retrying across restarts and offline periods until it lands exactly once.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, _ := cmd.Flags().GetString("method")
			ctxPairs, _ := cmd.Flags().GetStringArray("context")
			wait, _ := cmd.Flags().GetDuration("wait")

			contextMap, err := parseContext(ctxPairs)
			if err != nil {
				return err
			}

			done := make(chan client.RedeemResult, 1)
			env, err := openQueueEnv(cmd,
				func(e queue.Entry, res client.RedeemResult) {
					select {
					case done <- res:
					default:
					}
				},
				func(e queue.Entry, res client.RedeemResult) {
					if !res.Retryable {
						select {
						case done <- res:
						default:
						}
					}
				},
			)
			if err != nil {
				return err
			}
			defer env.close()

			entry, err := env.queue.Enqueue(queue.Request{
				VoucherCode: args[0],
				Method:      client.Method(method),
				Context:     contextMap,
			})
			if err != nil {
				return err
			}
			fmt.Printf("queued %s (idempotency key %s)\n", entry.ID, entry.IdempotencyKey())

			if wait <= 0 {
				return nil
			}
			select {
			case res := <-done:
				out, _ := json.MarshalIndent(res, "", "  ")
				fmt.Println(string(out))
				if !res.Success() {
					os.Exit(1)
				}
			case <-time.After(wait):
				fmt.Println("still pending; the queue will keep retrying on next drain")
			}
			return nil
		},
	}
	cmd.Flags().String("method", string(client.MethodManual), "Capture method: scan|manual")
	cmd.Flags().StringArray("context", nil, "Context pair key=value (repeatable)")
	cmd.Flags().Duration("wait", 30*time.Second, "How long to wait for a terminal outcome (0 = fire and forget)")
	return cmd
}
