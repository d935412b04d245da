package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heibot/chatguard/config"
	"github.com/heibot/chatguard/rules"
)

var rulesFormat string

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().StringVarP(&rulesFormat, "format", "f", "text", "Output format (text|json)")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active detection rules in priority order",
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	set, err := cfg.RuleSet()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch rulesFormat {
	case "json":
		type row struct {
			ID          string `json:"id"`
			Category    string `json:"category"`
			Severity    string `json:"severity"`
			Mask        string `json:"mask"`
			Description string `json:"description"`
		}
		rows := make([]row, 0, set.Len())
		for _, r := range set.Rules() {
			rows = append(rows, row{r.ID, string(r.Category), r.Severity.String(), string(r.Mask), r.Description})
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tMASK\tDESCRIPTION")
		for _, r := range set.Rules() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Category, r.Severity, r.Mask, r.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d rules in %d categories\n", set.Len(), len(set.Categories()))
		for _, c := range set.Categories() {
			meta := rules.GetCategoryInfo(c)
			fmt.Fprintf(out, "  %-26s %s (default %s)\n", c, meta.Name, meta.DefaultRisk)
		}
	default:
		return fmt.Errorf("unknown format %q", rulesFormat)
	}
	return nil
}
