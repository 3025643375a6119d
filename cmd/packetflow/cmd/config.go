package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/packetflow/iccr/internal/config"
)

var (
	exportFormat   string
	exportSanitize bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect process configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the process configuration, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}
		fmt.Println("configuration is valid")
		return nil
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the resolved process configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		source := config.ConfigSourceDefaults
		if configPath != "" {
			source = config.ConfigSourceFile
		}
		svc := config.NewConfigService(cfg, configPath, time.Now(), source)

		resp, err := svc.GetConfig(context.Background(), config.GetConfigOptions{
			Format:   exportFormat,
			Sanitize: exportSanitize,
		})
		if err != nil {
			return fmt.Errorf("failed to export config: %w", err)
		}

		if exportFormat == "yaml" {
			out, err := yaml.Marshal(resp)
			if err != nil {
				return fmt.Errorf("failed to marshal config as yaml: %w", err)
			}
			_, err = os.Stdout.Write(out)
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	configExportCmd.Flags().StringVar(&exportFormat, "output", "json", "export format (json or yaml)")
	configExportCmd.Flags().BoolVar(&exportSanitize, "sanitize", true, "redact secrets (passwords, API keys, JWT secrets) from the export")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configExportCmd)
}
