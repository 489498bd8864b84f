package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sobres/internal/cli"
	"sobres/internal/core"
	"sobres/internal/reconcile"
)

func transactionsCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List transactions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tp, err := sess.Controller.TransactionsPage(cmd.Context(), page)
			if err != nil {
				return err
			}
			loc := sess.Prefs.Locale()
			out := cmd.OutOrStdout()

			t := cli.NewTable(out, "ID", "Date", "Account", "Payee", "Category", "Amount", "")
			for _, tx := range tp.Page.Results {
				payee := tx.Payee
				switch {
				case tx.IsTransfer:
					payee = "Transfer with " + tx.TransferAccount
				case tx.IsAdjustment:
					payee = cli.SubtleStyle.Render("Reconciliation adjustment")
				}
				mark := ""
				if tx.Linked() {
					mark = fmt.Sprintf("↔ #%d", tx.TransferPairID)
				}
				t.Row(tx.ID, tx.Date, tx.AccountName, payee, tx.CategoryName, cli.Money(loc, tx.Amount), mark)
			}
			if err := t.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("page %d, %d transactions", tp.Page.Page, tp.Page.Count)))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <transaction-id> <transaction-id>",
		Short: "Pair two transactions as the legs of a transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := parseID(args[0], "id_1")
			if err != nil {
				return err
			}
			second, err := parseID(args[1], "id_2")
			if err != nil {
				return err
			}
			if err := sess.Controller.LinkTransfer(cmd.Context(), reconcile.LinkInput{First: first, Second: second}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d and #%d\n", cli.SuccessStyle.Render("Linked"), first, second)
			return nil
		},
	}
}

func unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <transaction-id>",
		Short: "Turn a transfer back into two plain transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			if err := sess.Controller.UnlinkTransfer(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d\n", cli.SuccessStyle.Render("Unlinked"), id)
			return nil
		},
	}
}

func transferCmd() *cobra.Command {
	var in reconcile.TransferInput
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Date == "" {
				in.Date = core.DateOf(time.Now()).String()
			}
			ids, err := sess.Controller.CreateTransfer(cmd.Context(), in, sess.Prefs.Locale())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s transfer #%d → #%d\n", cli.SuccessStyle.Render("Created"), ids.Out, ids.In)
			return nil
		},
	}
	cmd.Flags().Int64Var(&in.Source, "from", 0, "source account id")
	cmd.Flags().Int64Var(&in.Destination, "to", 0, "destination account id")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount to move")
	cmd.Flags().StringVar(&in.Date, "date", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&in.Memo, "memo", "", "memo for both legs")
	cmd.Flags().Int64Var(&in.Category, "category", 0, "category for transfers to off-budget accounts")
	for _, f := range []string{"from", "to", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
