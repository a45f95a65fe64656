package model

import (
	"fmt"
	"runtime"
	"time"
)

// Segmentation modes
const (
	ModePhrase  = "phrase"
	ModeCadence = "cadence"
	ModeBoth    = "both"
)

// Output formats
const (
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatMIDI     = "midi"
	FormatMarkdown = "md"
)

// Config is the complete run configuration, threaded explicitly through the pipeline
type Config struct {
	Input        InputConfig        `yaml:"input" mapstructure:"input"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Segmentation SegmentationConfig `yaml:"segmentation" mapstructure:"segmentation"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Catalog      CatalogConfig      `yaml:"catalog" mapstructure:"catalog"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
}

// InputConfig selects source documents
type InputConfig struct {
	Root       string   `yaml:"root" mapstructure:"root"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

// OutputConfig controls what gets written and where
type OutputConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
	Verbose bool     `yaml:"verbose" mapstructure:"verbose"`
}

// SegmentationConfig tunes the phrase and cadence engine
type SegmentationConfig struct {
	Mode         string  `yaml:"mode" mapstructure:"mode"`                   // phrase, cadence, both
	Tolerance    float64 `yaml:"tolerance" mapstructure:"tolerance"`         // quarter-note slack for bar boundaries
	SopranoVoice int     `yaml:"soprano_voice" mapstructure:"soprano_voice"` // part index of the reference voice
	BassVoice    int     `yaml:"bass_voice" mapstructure:"bass_voice"`       // part index of the bass, -1 = last part
	LowerVoices  []int   `yaml:"lower_voices" mapstructure:"lower_voices"`   // part indexes forced to bass clef
}

// ConcurrencyConfig sizes the worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig paces file reads per input directory (0 = unlimited)
type RateLimitConfig struct {
	FilesPerSecond float64 `yaml:"files_per_second" mapstructure:"files_per_second"`
	BurstSize      int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls the derived-result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// CatalogConfig points at an optional piece metadata catalog
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LLMConfig configures optional commentary generation
type LLMConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"` // "" disables
	Model           string `yaml:"model" mapstructure:"model"`
	APIKey          string `yaml:"-" mapstructure:"api_key"`
	BaseURL         string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout         int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictCitations bool   `yaml:"strict_citations" mapstructure:"strict_citations"`
	MaxTokens       int    `yaml:"max_tokens" mapstructure:"max_tokens"`

	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Extensions: []string{".yaml", ".yml", ".json"},
		},
		Output: OutputConfig{
			Dir:     "./chorale-out",
			Formats: []string{FormatYAML, FormatJSON, FormatMarkdown},
		},
		Segmentation: SegmentationConfig{
			Mode:         ModeBoth,
			Tolerance:    1e-6,
			SopranoVoice: 0,
			BassVoice:    3,
			LowerVoices:  []int{2, 3},
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		RateLimiting: RateLimitConfig{
			FilesPerSecond: 0,
			BurstSize:      5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".chorale-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:         30,
			StrictCitations: true,
			MaxTokens:       800,
		},
	}
}

// Validate reports configuration errors. An invalid configuration is the only fatal condition of a run.
func (c *Config) Validate() error {
	switch c.Segmentation.Mode {
	case ModePhrase, ModeCadence, ModeBoth:
	default:
		return fmt.Errorf("invalid segmentation mode %q (want phrase, cadence or both)", c.Segmentation.Mode)
	}
	if c.Segmentation.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative: %g", c.Segmentation.Tolerance)
	}
	if c.Segmentation.SopranoVoice < 0 {
		return fmt.Errorf("soprano voice index must not be negative: %d", c.Segmentation.SopranoVoice)
	}
	if c.Segmentation.BassVoice < -1 {
		return fmt.Errorf("bass voice index must be -1 or a part index: %d", c.Segmentation.BassVoice)
	}
	if c.Concurrency.Workers <= 0 {
		return fmt.Errorf("workers must be positive: %d", c.Concurrency.Workers)
	}
	if c.RateLimiting.FilesPerSecond < 0 {
		return fmt.Errorf("files_per_second must not be negative: %g", c.RateLimiting.FilesPerSecond)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output dir is required")
	}
	for _, f := range c.Output.Formats {
		switch f {
		case FormatYAML, FormatJSON, FormatMIDI, FormatMarkdown:
		default:
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	if len(c.Input.Extensions) == 0 {
		return fmt.Errorf("at least one input extension is required")
	}
	return nil
}

// WantsFormat reports whether the output format is enabled
func (c *Config) WantsFormat(format string) bool {
	for _, f := range c.Output.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// PhraseEnabled reports whether phrase excerpts are produced
func (c *Config) PhraseEnabled() bool {
	return c.Segmentation.Mode == ModePhrase || c.Segmentation.Mode == ModeBoth
}

// CadenceEnabled reports whether cadence excerpts are produced
func (c *Config) CadenceEnabled() bool {
	return c.Segmentation.Mode == ModeCadence || c.Segmentation.Mode == ModeBoth
}
