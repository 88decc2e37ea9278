package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/payapp-engine/api"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify every stored application once",
	Long: `Re-verifies every stored application's summary against its ledger.
Exits non-zero when any application fails verification.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		rt, err := loadRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		scheduler := api.NewAuditScheduler(rt.service, rt.metrics, rt.log.With().Str("component", "audit").Logger())
		report, err := scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "checked %d applications\n", report.Checked)
		for _, f := range report.Findings {
			fmt.Fprintf(out, "  %s (project %s, #%d): %v\n", f.ApplicationID, f.ProjectID, f.ApplicationNumber, f.Err)
		}
		if !report.OK() {
			return fmt.Errorf("%d applications failed verification", len(report.Findings))
		}
		return nil
	},
}
