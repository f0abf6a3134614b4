package clientcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// NewVoucherCommand groups voucher administration against the server API.
func NewVoucherCommand() *cobra.Command {
	voucherCmd := &cobra.Command{Use: "voucher", Short: "Voucher operations"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a voucher on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			code, _ := cmd.Flags().GetString("code")
			amount, _ := cmd.Flags().GetFloat64("amount")
			currency, _ := cmd.Flags().GetString("currency")
			msisdn, _ := cmd.Flags().GetString("msisdn")
			stations, _ := cmd.Flags().GetStringArray("allow-station")

			body, _ := json.Marshal(map[string]any{
				"code":     code,
				"amount":   amount,
				"currency": currency,
				"msisdn":   msisdn,
				"stations": stations,
			})
			url := strings.TrimRight(cfg.ServerURL, "/") + "/v1/vouchers"
			resp, err := http.Post(url, "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("voucher create failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}
			fmt.Println(strings.TrimSpace(string(raw)))
			return nil
		},
	}
	createCmd.Flags().String("code", "", "Voucher code")
	createCmd.Flags().Float64("amount", 0, "Voucher amount")
	createCmd.Flags().String("currency", "RWF", "ISO currency code")
	createCmd.Flags().String("msisdn", "", "Beneficiary phone number")
	createCmd.Flags().StringArray("allow-station", nil, "Station allowed to redeem (repeatable; empty = any)")
	_ = createCmd.MarkFlagRequired("code")
	_ = createCmd.MarkFlagRequired("amount")
	voucherCmd.AddCommand(createCmd)

	redemptionsCmd := &cobra.Command{
		Use:   "redemptions",
		Short: "List persisted redemptions on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			expr, _ := cmd.Flags().GetString("filter")
			url := strings.TrimRight(cfg.ServerURL, "/") + "/v1/redemptions"
			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			if expr != "" {
				q := req.URL.Query()
				q.Set("filter", expr)
				req.URL.RawQuery = q.Encode()
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("list redemptions failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}
			fmt.Println(strings.TrimSpace(string(raw)))
			return nil
		},
	}
	redemptionsCmd.Flags().String("filter", "", `CEL filter, e.g. 'station_id == "st-001"'`)
	voucherCmd.AddCommand(redemptionsCmd)

	return voucherCmd
}
