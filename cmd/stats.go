package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ca-srg/prodsearch/internal/metrics"
)

var (
	statsDBPath string
	statsYAML   bool
	statsJSON   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show search counts per surface and strategy",
	Long: `
Print the usage counters recorded by serve and query.

Examples:
  prodsearch stats
  prodsearch stats --yaml
  prodsearch stats --db /var/lib/prodsearch/usage.db
`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsDBPath, "db", "", "Path to the usage database (defaults to USAGE_DB_PATH or ~/.prodsearch/usage.db)")
	statsCmd.Flags().BoolVar(&statsYAML, "yaml", false, "Output in YAML format")
	statsCmd.Flags().BoolVarP(&statsJSON, "json", "j", false, "Output in JSON format")
}

func runStats(cmd *cobra.Command, args []string) error {
	path := statsDBPath
	if path == "" {
		if cfg, err := loadAppConfig(); err == nil {
			path = cfg.UsageDBPath
		}
	}

	store, err := openUsageStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.Totals(cmd.Context())
	if err != nil {
		return err
	}
	return writeStats(cmd.OutOrStdout(), totals)
}

func writeStats(w io.Writer, totals []metrics.Total) error {
	switch {
	case statsYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]interface{}{"totals": totals}); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case statsJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"totals": totals})
	}

	if len(totals) == 0 {
		fmt.Fprintln(w, "No searches recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SURFACE\tSTRATEGY\tCOUNT")
	var sum int64
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Surface, t.Strategy, t.Count)
		sum += t.Count
	}
	fmt.Fprintf(tw, "total\t\t%d\n", sum)
	return tw.Flush()
}
