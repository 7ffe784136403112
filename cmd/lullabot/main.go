// Command lullabot holds the bot's maintenance tooling.
//
// Import a karma export (header row "key,value"):
//
//	lullabot import karma --team T0123 karma.csv
//
// Import a factoid export (headerless "key,be,value" rows):
//
//	lullabot import factoids --team T0123 factoids.csv
//
// SLACK_BOT_TOKEN and DATA_DIR are read from the environment or a .env
// file. Run imports while the server is stopped; both write to the same
// database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/garyellow/lullabot-go/internal/buildinfo"
)

func main() {
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lullabot",
		Short:         "Maintenance tooling for the lullabot Slack bot",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildImportCmd())
	return root
}
