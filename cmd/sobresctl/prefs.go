package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sobres/internal/cli"
	"sobres/internal/core"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show the number format preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printLocale(cmd, sess.Prefs.Locale())
			fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("stored in "+sess.Prefs.Path()))
			return nil
		},
	}
	cmd.AddCommand(setPrefsCmd())
	return cmd
}

func setPrefsCmd() *cobra.Command {
	var (
		symbol, thousands, decimal string
		decimals                   int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the number format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc := sess.Prefs.Locale()
			flags := cmd.Flags()
			if flags.Changed("symbol") {
				loc.Symbol = symbol
			}
			if flags.Changed("thousands") {
				loc.ThousandsSep = thousands
			}
			if flags.Changed("decimal") {
				loc.DecimalSep = decimal
			}
			if flags.Changed("decimals") {
				loc.Decimals = decimals
			}
			if err := sess.Prefs.SetLocale(loc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.SuccessStyle.Render("Preferences saved"))
			printLocale(cmd, loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "currency symbol")
	cmd.Flags().StringVar(&thousands, "thousands", "", "thousands separator (may be empty)")
	cmd.Flags().StringVar(&decimal, "decimal", "", "decimal separator")
	cmd.Flags().IntVar(&decimals, "decimals", 0, "digits after the decimal separator (0-2)")
	return cmd
}

func printLocale(cmd *cobra.Command, loc core.Locale) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "symbol:     %q\n", loc.Symbol)
	fmt.Fprintf(out, "thousands:  %q\n", loc.ThousandsSep)
	fmt.Fprintf(out, "decimal:    %q\n", loc.DecimalSep)
	fmt.Fprintf(out, "decimals:   %d\n", loc.Decimals)
	fmt.Fprintf(out, "example:    %s\n", loc.Format(core.Money{Cents: 123456789}))
}
