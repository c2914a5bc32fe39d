package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/diewo77/go-billing/internal/app"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/internal/store"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Recurring invoice jobs",
}

// runSummary is the JSON printed by `recurring run`.
type runSummary struct {
	services.RunReport
	Overdue int64 `json:"overdue"`
}

var recurringRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate every due recurring invoice and flag overdue invoices",
	Long: `Generates one invoice per elapsed period for every active schedule,
catching up missed periods, then marks sent invoices past their due date as
overdue. A failing schedule is reported and does not stop the others.`,
	Example: `  billingctl recurring run
  billingctl recurring run --at 2025-03-31`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := logger.WithComponent("recurring")
		at, _ := cmd.Flags().GetString("at")
		now := time.Now()
		if at != "" {
			t, err := time.Parse(time.DateOnly, at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			now = t
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			report, err := a.Services.Recurring.RunDue(cmd.Context(), now)
			if err != nil {
				return err
			}
			overdue, err := a.Services.Invoices.MarkOverdue(cmd.Context(), now)
			if err != nil {
				return err
			}
			log.Info().
				Int("generated", len(report.Invoices)).
				Int("ended", len(report.Ended)).
				Int("failed", len(report.Failed)).
				Int64("overdue", overdue).
				Msg("recurring run finished")
			if err := printJSON(cmd.OutOrStdout(), store.Of(runSummary{RunReport: report, Overdue: overdue}, nil)); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d schedule(s) failed", len(report.Failed))
			}
			return nil
		})
	},
}

var recurringGenerateCmd = &cobra.Command{
	Use:     "generate [recurring-id]",
	Short:   "Generate the next invoice of one schedule now",
	Example: `  billingctl recurring generate 12`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid recurring id %q", args[0])
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Services.Recurring.Generate(cmd.Context(), uint(id))
			if perr := printJSON(cmd.OutOrStdout(), store.Of(res, err)); perr != nil {
				return perr
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(recurringCmd)
	recurringCmd.AddCommand(recurringRunCmd, recurringGenerateCmd)
	recurringRunCmd.Flags().String("at", "", "Run as of this date (YYYY-MM-DD) instead of today")
}
