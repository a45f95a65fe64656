package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/chorale/internal/logger"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/ppiankov/chorale/internal/pipeline"
	"github.com/ppiankov/chorale/internal/watch"
	"github.com/ppiankov/chorale/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	noCache       bool
	llmEnabled    bool
	watchMode     bool
	watchDebounce time.Duration
)

// processFlagKeys maps process flags to configuration keys
var processFlagKeys = map[string]string{
	"output.dir":                     "output-dir",
	"output.formats":                 "formats",
	"segmentation.mode":              "mode",
	"segmentation.tolerance":         "tolerance",
	"segmentation.soprano_voice":     "soprano",
	"segmentation.bass_voice":        "bass",
	"segmentation.lower_voices":      "lower-voices",
	"concurrency.workers":            "workers",
	"rate_limiting.files_per_second": "rate",
	"catalog.path":                   "catalog",
	"llm.model":                      "llm-model",
	"llm.base_url":                   "llm-base-url",
}

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <input-dir>",
	Short: "Segment every score under a directory into phrase and cadence excerpts",
	Long: `Process discovers score documents (.yaml, .yml, .json) under the input
directory and, for each one:
- Finds the fermatas written on the soprano voice
- Plans phrase spans between them and cadence windows around them
- Extracts each span as its own score
- Records final pitches, cadence type and melodic signatures

A file that cannot be read is reported and skipped; the rest of the run continues.

Example:
  chorale process ./chorales
  chorale process ./chorales --mode cadence --formats yaml,midi
  chorale process ./chorales --catalog catalog.yaml --workers 8
  chorale process ./chorales --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	// Output flags
	processCmd.Flags().StringP("output-dir", "o", "./chorale-out", "output directory for excerpts and records")
	processCmd.Flags().StringSlice("formats", []string{model.FormatYAML, model.FormatJSON, model.FormatMarkdown}, "output formats (yaml, json, midi, md)")

	// Segmentation flags
	processCmd.Flags().String("mode", model.ModeBoth, "segmentation mode (phrase, cadence, both)")
	processCmd.Flags().Float64("tolerance", 1e-6, "quarter-note tolerance for bar boundaries")
	processCmd.Flags().Int("soprano", 0, "part index of the soprano voice")
	processCmd.Flags().Int("bass", 3, "part index of the bass voice (-1 = last part)")
	processCmd.Flags().IntSlice("lower-voices", []int{2, 3}, "part indexes written in bass clef")
	processCmd.Flags().String("catalog", "", "piece catalog (YAML or JSON) with tonal centers and titles")

	// Concurrency flags
	processCmd.Flags().Int("workers", 0, "number of concurrent workers (default: number of CPUs)")
	processCmd.Flags().Float64("rate", 0, "max files read per second (0 = unlimited)")
	processCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh segmentation)")

	// LLM flags
	processCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable commentary generation")
	processCmd.Flags().String("llm-model", "gpt-4o-mini", "LLM model name")
	processCmd.Flags().String("llm-base-url", "", "OpenAI-compatible API base URL")

	// Watch flags
	processCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "keep running and reprocess changed scores")
	processCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDelay, "quiet period before reprocessing changes")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadProcessConfig(cmd, args[0])
	if err != nil {
		return err
	}

	info, err := os.Stat(cfg.Input.Root)
	if err != nil {
		return fmt.Errorf("input root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input root %s is not a directory", cfg.Input.Root)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(cfg)

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}
	r := &run{
		cfg:       cfg,
		pipeline:  p,
		processor: worker.NewBatchProcessor(p, cfg.Concurrency.Workers, cfg.RateLimiting.FilesPerSecond, cfg.RateLimiting.BurstSize),
		renderer:  pipeline.NewRenderer(cfg.Output.Dir, cfg.Output.Formats),
	}

	fmt.Fprintf(os.Stderr, "⚙️  Discovering scores...\n")
	paths, err := worker.DiscoverFiles(cfg.Input.Root, cfg.Input.Extensions)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Found %d score files\n\n", len(paths))

	if _, err := r.process(ctx, paths); err != nil {
		return err
	}

	if !watchMode {
		return nil
	}
	return r.watch(ctx, watchDebounce)
}

// loadProcessConfig merges flags into the configuration for a process run
func loadProcessConfig(cmd *cobra.Command, inputRoot string) (*model.Config, error) {
	if cmd.Flags().Changed("no-cache") {
		viper.Set("cache.enabled", !noCache)
	}
	if llmEnabled && viper.GetString("llm.provider") == "" {
		viper.Set("llm.provider", "openai")
	}

	cfg, err := loadConfig(cmd, processFlagKeys)
	if err != nil {
		return nil, err
	}
	cfg.Input.Root = inputRoot

	if llmEnabled && cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return cfg, nil
}

func printBanner(cfg *model.Config) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Chorale Segmentation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input dir:    %s\n", cfg.Input.Root)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", cfg.Segmentation.Mode)
	fmt.Fprintf(os.Stderr, "  Formats:      %v\n", cfg.Output.Formats)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Cache:        %v\n", cfg.Cache.Enabled)
	if cfg.Catalog.Path != "" {
		fmt.Fprintf(os.Stderr, "  Catalog:      %s\n", cfg.Catalog.Path)
	}
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")
}

// run holds what one process invocation reuses across watch cycles
type run struct {
	cfg       *model.Config
	pipeline  *pipeline.Pipeline
	processor *worker.BatchProcessor
	renderer  *pipeline.Renderer
}

// process segments the given files, renders every set, and writes the run manifest
func (r *run) process(ctx context.Context, paths []string) (*model.Manifest, error) {
	m := pipeline.NewManifest(r.cfg.Input.Root, r.cfg.Output.Dir, r.cfg.Segmentation.Mode)

	fmt.Fprintf(os.Stderr, "⚙️  Processing %d scores with %d workers...\n\n", len(paths), r.cfg.Concurrency.Workers)
	results := r.processor.ProcessPaths(ctx, paths)
	pipeline.RecordResults(m, results)

	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		set := result.Set
		if _, err := r.renderer.RenderSet(set); err != nil {
			pipeline.RecordFailure(m, result.Path, err)
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write excerpts: %v\n", result.Path, err)
			continue
		}

		fmt.Fprintf(os.Stderr, "✓ %s (%d phrases, %d cadences)\n",
			set.PieceID, set.CountKind(model.ExcerptPhrase), set.CountKind(model.ExcerptCadence))
		for _, w := range set.Warnings {
			logger.Warn("%s: %s", set.PieceID, w)
		}
	}

	manifestPath, err := pipeline.WriteManifest(m)
	if err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Segmentation Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d scores\n", m.Files)
	fmt.Fprintf(os.Stderr, "  Success:    %d\n", m.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:   %d (%d malformed)\n", m.Failed, pipeline.CountMalformed(results))
	fmt.Fprintf(os.Stderr, "  Excerpts:   %d\n", m.Excerpts)
	if stats, ok := r.pipeline.CacheStats(); ok {
		fmt.Fprintf(os.Stderr, "  Cache:      %d hits (%d from disk), %d misses\n", stats.Hits, stats.DiskHits, stats.Misses)
	}
	fmt.Fprintf(os.Stderr, "  Manifest:   %s\n", manifestPath)
	fmt.Fprintf(os.Stderr, "\n")

	return m, nil
}

// watch reprocesses changed scores until ctx is cancelled
func (r *run) watch(ctx context.Context, delay time.Duration) error {
	w, err := watch.New(r.cfg.Input.Root, r.cfg.Input.Extensions, []string{r.cfg.Output.Dir, r.cfg.Cache.Dir}, delay)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(os.Stderr, "👀 Watching %s for changes (Ctrl-C to stop)\n\n", r.cfg.Input.Root)

	return w.Run(ctx, func(changed []string) {
		var present []string
		for _, path := range changed {
			if _, err := os.Stat(path); err == nil {
				present = append(present, path)
				continue
			}
			dir := r.renderer.PieceDir(pipeline.PieceID(path))
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("remove outputs of %s: %v", path, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "✓ %s removed\n", pipeline.PieceID(path))
		}
		if len(present) == 0 {
			return
		}
		if _, err := r.process(ctx, present); err != nil {
			logger.Error("%v", err)
		}
	})
}
