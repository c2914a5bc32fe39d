package main

import (
	"github.com/spf13/cobra"

	"github.com/diewo77/go-billing/internal/app"
	"github.com/diewo77/go-billing/internal/numbering"
	"github.com/diewo77/go-billing/internal/store"
)

var numberCmd = &cobra.Command{
	Use:   "number",
	Short: "Document number sequences",
}

var numberNextCmd = &cobra.Command{
	Use:       "next [kind]",
	Short:     "Reserve the next number of a sequence (quote, invoice, customer)",
	Example:   `  billingctl number next invoice --peek`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		peek, _ := cmd.Flags().GetBool("peek")
		return withApp(cmd.Context(), func(a *app.App) error {
			next := a.Services.Numbers.GetNextNumber
			if peek {
				next = a.Services.Numbers.Peek
			}
			n, err := next(cmd.Context(), args[0])
			if perr := printJSON(cmd.OutOrStdout(), store.Of(n, err)); perr != nil {
				return perr
			}
			return err
		})
	},
}

func kindNames() []string {
	out := make([]string, 0, len(numbering.Kinds))
	for _, k := range numbering.Kinds {
		out = append(out, string(k))
	}
	return out
}

func init() {
	rootCmd.AddCommand(numberCmd)
	numberCmd.AddCommand(numberNextCmd)
	numberNextCmd.Flags().Bool("peek", false, "Show the next number without reserving it")
}
