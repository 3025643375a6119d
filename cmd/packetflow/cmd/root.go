package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "packetflow",
	Short: "PacketFlow ICCR runtime",
	Long: `packetflow runs the Intent/Capability/Context/Reactor (ICCR) runtime:
a capability-scoped intent router, reactor/stream processing engines, a
temporal scheduling layer, and a component registry with health
monitoring and dynamic per-component configuration.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to env vars only)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}
