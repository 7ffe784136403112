package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/garyellow/lullabot-go/internal/config"
	"github.com/garyellow/lullabot-go/internal/importer"
	"github.com/garyellow/lullabot-go/internal/slackapp"
	"github.com/garyellow/lullabot-go/internal/storage"
)

type importFlags struct {
	team    string
	dataDir string
	token   string
	dryRun  bool
}

// buildImportCmd creates the "import" command group.
func buildImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import karma or factoids from a CSV export",
	}
	cmd.PersistentFlags().StringVar(&flags.team, "team", "", "Slack team ID the data belongs to (required)")
	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", envOr(config.EnvDataDir, config.DefaultDataDir()),
		"Directory holding lullabot.db")
	cmd.PersistentFlags().StringVar(&flags.token, "token", os.Getenv(config.EnvSlackBotToken),
		"Slack bot token used to resolve user names")
	cmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "Print the resolved document without saving it")
	_ = cmd.MarkPersistentFlagRequired("team")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "karma FILE",
			Short: "Import a key,value karma export",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runImport(cmd, flags, args[0], func(ctx context.Context, r io.Reader, users importer.UserLister, db *storage.DB) (any, error) {
					return importer.Karma(ctx, r, users, storage.NewKarmaRepository(db), flags.options())
				})
			},
		},
		&cobra.Command{
			Use:   "factoids FILE",
			Short: "Import a headerless key,be,value factoid export",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runImport(cmd, flags, args[0], func(ctx context.Context, r io.Reader, users importer.UserLister, db *storage.DB) (any, error) {
					return importer.Factoids(ctx, r, users, storage.NewFactoidRepository(db), flags.options())
				})
			},
		},
	)
	return cmd
}

func (f importFlags) options() importer.Options {
	return importer.Options{Team: f.team, DryRun: f.dryRun}
}

type importFunc func(ctx context.Context, r io.Reader, users importer.UserLister, db *storage.DB) (any, error)

func runImport(cmd *cobra.Command, flags importFlags, path string, run importFunc) error {
	if flags.token == "" {
		return fmt.Errorf("%s or --token is required", config.EnvSlackBotToken)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg := config.Config{DataDir: flags.dataDir}
	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users := slackapp.NewClient(slackapp.ClientConfig{BotToken: flags.token})
	result, err := run(ctx, f, users, db)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if flags.dryRun {
		_, _ = fmt.Fprintln(out, "Dry run: nothing saved.")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Imported into team %s.\n", flags.team)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
