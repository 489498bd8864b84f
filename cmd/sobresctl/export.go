package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sobres/internal/cli"
	"sobres/internal/export/sheets"
)

func exportCmd() *cobra.Command {
	var month, tab string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a month of the budget to Google Sheets",
		Long: `Write a month of the budget to its own tab of the spreadsheet named by
GOOGLE_SPREADSHEET_ID, authenticating with GOOGLE_SERVICE_ACCOUNT_JSON or
GOOGLE_SERVICE_ACCOUNT_FILE. The tab is replaced on every export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cfg.ExportEnabled() {
				return errors.New("export is not configured: set GOOGLE_SPREADSHEET_ID and service account credentials")
			}
			m, err := resolveMonth(month)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			exp, err := sheets.New(ctx, sheets.Config{
				SpreadsheetID:   cfg.GoogleSpreadsheetID,
				CredentialsJSON: cfg.GoogleServiceAccountJSON,
				CredentialsFile: cfg.GoogleServiceAccountFile,
				TabBase:         tab,
			}, logger)
			if err != nil {
				return err
			}
			snap, err := sess.Controller.Budget().Snapshot(ctx, m)
			if err != nil {
				return err
			}
			rng, err := exp.ExportMonth(ctx, snap, sess.Prefs.Locale())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s to %s\n", cli.SuccessStyle.Render("Exported"), m.Label(), rng)
			return nil
		},
	}
	monthFlag(cmd, &month)
	cmd.Flags().StringVar(&tab, "tab", sheets.DefaultTabBase, "tab name suffix")
	return cmd
}
