package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/brandbot/internal/config"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "brandbotctl",
	Short: "Operate brandbot profiles from the command line",
	Long: `brandbotctl trains agent profiles from local context and exercises
them without the HTTP console.

Backend settings come from the same BRANDBOT_* environment and optional
BRANDBOT_CONFIG file used by the API server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		observability.SetLevel(cfg.LogLevel)
		appConfig = cfg
		return nil
	},
}

// appConfig is loaded once per invocation by the root command.
var appConfig *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readProfile(path string) (*domain.AgentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	var p domain.AgentProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return &p, nil
}
