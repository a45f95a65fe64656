package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/chorale/internal/logger"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/pipeline"
	"github.com/ppiankov/chorale/internal/serve"
	"github.com/ppiankov/chorale/internal/signature"
	"github.com/spf13/cobra"
)

var indexTop int

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [output-dir]",
	Short: "Group soprano phrases across pieces by interval and rhythm signature",
	Long: `Index reads every records document written by 'chorale process' and groups
phrases whose soprano lines share the same interval sequence and durations.
The result is written to groups.json in the output directory, largest group first.

Example:
  chorale index
  chorale index ./chorale-out --top 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().IntVar(&indexTop, "top", 10, "number of groups to list")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	dir := cfg.Output.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	index, err := buildIndex(dir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, serve.GroupsFile)
	if err := pipeline.WriteGroups(path, index); err != nil {
		return fmt.Errorf("write groups: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Indexed %d phrases into %d groups\n", index.PhraseCount, index.GroupCount)
	for i, g := range index.Groups {
		if i == indexTop {
			break
		}
		if g.Size < 2 {
			break
		}
		fmt.Fprintf(os.Stderr, "  %s  %3d  %s\n", g.GroupID, g.Size, g.Signature)
		logger.Section(g.GroupID)
		for _, m := range g.Phrases {
			logger.Info("%s  %s  %s", m.ID, m.Measures, m.Title)
		}
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	return nil
}

// buildIndex groups the phrases of every piece under dir
func buildIndex(dir string) (model.GroupIndex, error) {
	pieces, err := pipeline.CollectRecords(dir)
	if err != nil {
		return model.GroupIndex{}, err
	}
	var records []model.ExcerptRecord
	for _, p := range pieces {
		records = append(records, p.Records...)
	}
	return signature.GroupPhrases(records), nil
}
