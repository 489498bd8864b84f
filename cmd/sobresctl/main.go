package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sobres/internal/cli"
	"sobres/internal/config"
	"sobres/internal/log"
)

var (
	cfg    *config.Config
	logger *log.Logger
	sess   *cli.Session

	rootCmd = &cobra.Command{
		Use:   "sobresctl",
		Short: "Envelope budget from the terminal",
		Long: `sobresctl reads and edits the same envelope budget as the sobres web app:
assign money to categories, set goals, reconcile accounts and manage transfers.

The backend is chosen by DATA_BACKEND (memory, sqlite or rest), as for the server.`,
		SilenceUsage:       true,
		PersistentPreRunE:  openSession,
		PersistentPostRunE: closeSession,
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(transactionsCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(unlinkCmd())
	rootCmd.AddCommand(transferCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(exportCmd())
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func openSession(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	logger = cli.SetupLogger(cfg, log.ComponentCLI, os.Stderr)

	sess, err = cli.OpenSession(cmd.Context(), cfg, logger)
	return err
}

func closeSession(*cobra.Command, []string) error {
	if sess == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sess.Close(ctx)
}
