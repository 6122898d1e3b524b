package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Xombi17/MEETease/internal/app"
	"github.com/Xombi17/MEETease/internal/pkg/config"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
)

const serviceName = "meetease-cli"

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "meetease",
	Short: "Find a meeting point for a group",
	Long: `
meetease creates and joins shared meeting sessions and resolves meeting
points from the command line. Sessions are synchronised through the same
Valkey and NATS backends the API server uses.
`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		cfg, err := config.Load(serviceName)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logging.Setup(level, "text")
		loaded = cfg
		return nil
	},
}

var (
	verbose bool
	loaded  *config.Config
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(createCmd, joinCmd, resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connect dials the backends and fails when session sync cannot work.
func connect() (*app.Backends, error) {
	b := app.ConnectBackends(loaded, serviceName)
	if !b.Bridge(loaded).Enabled() {
		b.Close()
		return nil, fmt.Errorf("session sync needs Valkey at %s and NATS at %s", loaded.Valkey.Addr, loaded.NATS.URL)
	}
	return b, nil
}
