package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"sobres/internal/cli"
	"sobres/internal/controller"
	"sobres/internal/core"
	"sobres/internal/goal"
	"sobres/internal/ledger"
)

func monthFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "month", "", "month as YYYY-MM (default: current month)")
}

func resolveMonth(raw string) (core.Month, error) {
	if raw == "" {
		return core.CurrentMonth(time.Now()), nil
	}
	return core.ParseMonth(raw)
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(field, "must be a positive number")
	}
	return id, nil
}

func budgetCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show a month of the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := resolveMonth(month)
			if err != nil {
				return err
			}
			page, err := sess.Controller.BudgetPage(cmd.Context(), m)
			if err != nil {
				return err
			}
			if !page.HasSnapshot {
				return fmt.Errorf("budget for %s could not be loaded: %w", m.Label(), errors.Join(page.Errors...))
			}
			return printSnapshot(cmd, page.Snapshot, sess.Prefs.Locale())
		},
	}
	monthFlag(cmd, &month)
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap ledger.Snapshot, loc core.Locale) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.TitleStyle.Render(snap.Month.Label()))
	fmt.Fprintln(out, cli.BoxStyle.Render("Ready to Assign  "+cli.Money(loc, snap.ReadyToAssign)))

	t := cli.NewTable(out, "ID", "Group", "Category", "Assigned", "Activity", "Available", "Goal")
	for _, g := range snap.Groups {
		for _, c := range g.Categories {
			t.Row(c.CategoryID, g.Name, c.Name,
				loc.Format(c.Assigned), cli.Money(loc, c.Activity), cli.Money(loc, c.Available), goalCell(c, loc))
		}
	}
	t.Row("", "Total", "", loc.Format(snap.Totals.Assigned), cli.Money(loc, snap.Totals.Activity), cli.Money(loc, snap.Totals.Available))
	return t.Flush()
}

func goalCell(c ledger.CategorySummary, loc core.Locale) string {
	if !c.Goal.Active() {
		return ""
	}
	msg := c.GoalMessage
	if msg == "" {
		msg = c.Goal.Message(loc)
	}
	if c.Goal.IsMet {
		return cli.SuccessStyle.Render(msg)
	}
	return msg
}

func assignCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "assign <category-id> <amount>",
		Short: "Set the amount assigned to a category for a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category_id")
			if err != nil {
				return err
			}
			m, err := resolveMonth(month)
			if err != nil {
				return err
			}
			loc := sess.Prefs.Locale()
			edit, err := sess.Controller.Assign(cmd.Context(), controller.AssignInput{Month: m.Key(), CategoryID: id, Amount: args[1]}, loc)
			if err != nil {
				return err
			}
			snap, err := edit.Wait(cmd.Context())
			if err != nil {
				return err
			}
			cat, _ := snap.Category(id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s to %s for %s\n",
				cli.SuccessStyle.Render("Assigned"), loc.Format(edit.Amount), cat.Name, m.Label())
			fmt.Fprintf(cmd.OutOrStdout(), "Ready to Assign: %s\n", cli.Money(loc, snap.ReadyToAssign))
			return nil
		},
	}
	monthFlag(cmd, &month)
	return cmd
}

func goalCmd() *cobra.Command {
	var (
		in    goal.Input
		month string
	)
	cmd := &cobra.Command{
		Use:   "goal <category-id>",
		Short: "Set or clear a category goal",
		Long: `Set the goal of a category. Types: MONTHLY, TARGET_BALANCE, TARGET_DATE (needs --date)
and NONE to clear it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category_id")
			if err != nil {
				return err
			}
			m, err := resolveMonth(month)
			if err != nil {
				return err
			}
			loc := sess.Prefs.Locale()
			cat, err := sess.Controller.SaveGoal(cmd.Context(), id, in, loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s for %s\n", cli.SuccessStyle.Render("Goal saved"), cat.Name)

			// Progress is a bonus; the goal itself is already stored.
			if snap, err := sess.Controller.Budget().Refresh(cmd.Context(), m); err == nil {
				if c, ok := snap.Category(id); ok && c.Goal.Active() {
					fmt.Fprintln(cmd.OutOrStdout(), goalCell(c, loc))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Type, "type", "", "goal type")
	cmd.Flags().StringVar(&in.Target, "target", "", "target amount")
	cmd.Flags().StringVar(&in.TargetDate, "date", "", "target date as YYYY-MM-DD (TARGET_DATE goals)")
	monthFlag(cmd, &month)
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
