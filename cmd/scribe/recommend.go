package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/service"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate recommendations for a clinical note",
	Long: `Recommend reads a clinical note JSON file (or stdin with --file -) and
prints the prioritized recommendations from the rule engine. No LLM call
is made.`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringP("file", "f", "", "clinical note JSON file, - for stdin")
	recommendCmd.Flags().Bool("json", false, "output recommendations as JSON")
	_ = recommendCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")

	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	var note domain.ClinicalNote
	if err := json.Unmarshal(data, &note); err != nil {
		return fmt.Errorf("invalid clinical note JSON: %w", err)
	}

	recs := service.GenerateRecommendations(&note)
	logger.WithField("recommendation_count", len(recs)).Debug("Generated recommendations")

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(map[string]interface{}{"recommendations": recs})
	}

	if len(recs) == 0 {
		fmt.Fprintln(out, "No recommendations.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tTYPE\tTITLE\tDESCRIPTION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Priority, r.Type, r.Title, r.Description)
	}
	return tw.Flush()
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
