package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sobres/internal/cli"
	"sobres/internal/controller"
	"sobres/internal/core"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with balances and net worth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := sess.Controller.AccountsPage(cmd.Context())
			if err != nil {
				return err
			}
			loc := sess.Prefs.Locale()
			out := cmd.OutOrStdout()

			t := cli.NewTable(out, "ID", "Name", "Type", "Budget", "Balance")
			for _, a := range page.Accounts {
				budget := "on"
				if !a.OnBudget() {
					budget = cli.SubtleStyle.Render("off")
				}
				t.Row(a.ID, a.Name, a.Type, budget, cli.Money(loc, a.Balance))
			}
			if err := t.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "On budget:  %s\n", cli.Money(loc, page.NetWorth.OnBudget))
			fmt.Fprintf(out, "Off budget: %s\n", cli.Money(loc, page.NetWorth.OffBudget))
			fmt.Fprintf(out, "Net worth:  %s\n", cli.Money(loc, page.NetWorth.Total))
			return nil
		},
	}
	cmd.AddCommand(addAccountCmd())
	return cmd
}

func addAccountCmd() *cobra.Command {
	var in controller.AccountInput
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an account with an opening balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			a, err := sess.Controller.CreateAccount(cmd.Context(), in, sess.Prefs.Locale())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s account #%d %s\n", cli.SuccessStyle.Render("Created"), a.ID, a.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Type, "type", string(core.Checking), "CHECKING, SAVINGS, CASH, CREDIT, ASSET or LOAN")
	cmd.Flags().BoolVar(&in.OffBudget, "off-budget", false, "track the account outside the budget")
	cmd.Flags().StringVar(&in.Balance, "balance", "", "opening balance")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <account-id> <balance>",
		Short: "Match an account to its real balance with an adjustment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "account_id")
			if err != nil {
				return err
			}
			loc := sess.Prefs.Locale()
			res, err := sess.Controller.Reconcile(cmd.Context(), controller.ReconcileInput{AccountID: id, Target: args[1]}, loc)
			if err != nil {
				return err
			}
			if !res.Adjusted {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Balance already matches"))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s by %s, balance now %s\n",
				cli.SuccessStyle.Render("Adjusted"), loc.Format(res.Delta), loc.Format(res.NewBalance))
			return nil
		},
	}
}
