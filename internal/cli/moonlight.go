package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	moonlightHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Entries to show")
	moonlightAdjustCmd.Flags().StringVarP(&adjustReason, "reason", "r", "", "Reason recorded on the ledger")
	moonlightCmd.AddCommand(moonlightBalanceCmd, moonlightBonusCmd, moonlightHistoryCmd, moonlightAdjustCmd)
	rootCmd.AddCommand(moonlightCmd)
}

var (
	historyLimit int
	adjustReason string
)

var moonlightCmd = &cobra.Command{
	Use:     "moonlight",
	Aliases: []string{"ml"},
	Short:   "Inspect and claim moonlight",
}

var moonlightBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the moonlight balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		acc, err := d.Garden.Balance(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d moonlight (last daily bonus: %s)\n", acc.Balance, formatDate(acc.LastDailyBonusDate))
		return nil
	},
}

var moonlightBonusCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Claim today's moonlight bonus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.Garden.ClaimDailyBonus(cmd.Context(), userFlag)
		if err != nil {
			return err
		}
		if !res.Applied {
			fmt.Fprintf(stdout, "Already claimed for %s. Balance %d.\n", res.Date, res.Balance)
			return nil
		}
		fmt.Fprintf(stdout, "+%d moonlight under a %s moon. Balance %d.\n", res.Amount, res.Moon.Phase, res.Balance)
		return nil
	},
}

var moonlightHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent moonlight changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Garden.History(cmd.Context(), userFlag, historyLimit)
		if err != nil {
			return err
		}
		w := newTable(stdout)
		fmt.Fprintln(w, "WHEN\tKIND\tAMOUNT\tREASON\tBALANCE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%+d\t%s\t%d\n",
				e.Timestamp.Local().Format("2006-01-02 15:04"), e.Kind, e.Amount, e.Reason, e.BalanceAfter)
		}
		return w.Flush()
	},
}

var moonlightAdjustCmd = &cobra.Command{
	Use:   "adjust DELTA",
	Short: "Credit or debit moonlight by hand (debits stop at zero)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", args[0], err)
		}
		d, err := openDaemon(true)
		if err != nil {
			return err
		}
		defer d.Close()

		acc, applied, err := d.Garden.Adjust(cmd.Context(), userFlag, delta, adjustReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Adjusted %+d moonlight. Balance %d.\n", applied, acc.Balance)
		return nil
	},
}
