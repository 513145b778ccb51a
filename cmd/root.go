package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "prodsearch",
	Short: "prodsearch - natural language product search over OpenSearch",
	Long: `prodsearch turns free-text shopping queries such as "wireless headphones under $100"
into structured OpenSearch queries. An LLM extracts price ranges, brands, ratings and
categories, a regex fallback covers LLM outages, and results are rendered for display.
An optional uploaded image switches ranking to vector similarity.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
}
