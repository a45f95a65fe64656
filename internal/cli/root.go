package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ppiankov/chorale/internal/logger"
	"github.com/ppiankov/chorale/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is the release version, overridden at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chorale",
	Short: "Chorale - phrase and cadence segmentation of symbolic scores",
	Long: `Chorale segments four-part chorale scores into phrase and cadence excerpts.

Phrase boundaries come from the fermatas written on the soprano voice. Each
excerpt is written as its own score document together with a record of its
voices, final pitches, cadence classification and melodic signatures.

Chorale does not judge harmony. It reads the notation that is there.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Chorale.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chorale %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.chorale/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and CHORALE_* environment variables
func initConfig() {
	// A missing .env file is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			viper.AddConfigPath(filepath.Join(home, ".chorale"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	bindEnv()

	err := viper.ReadInConfig()
	logger.SetVerbose(viper.GetBool("output.verbose"))
	if err == nil {
		logger.Info("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
	}
}

// bindEnv maps CHORALE_* variables onto keys (CHORALE_OUTPUT_DIR -> output.dir)
func bindEnv() {
	viper.SetEnvPrefix("CHORALE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api_key", "CHORALE_LLM_API_KEY", "OPENAI_API_KEY")
}

// registerDefaults makes every configuration key known to viper so that
// environment variables can override keys absent from the config file
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults("", tree)

	// Keys hidden or omitted by the YAML form
	for _, key := range []string{"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy"} {
		viper.SetDefault(key, "")
	}
	return nil
}

func setDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig binds the command's flags to their configuration keys and
// returns the validated effective configuration
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*model.Config, error) {
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			viper.Set(key, viperValue(cmd, name))
		}
	}

	// Every key has a registered default, so decoding starts from zero values
	cfg := &model.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// viperValue returns a changed flag's typed value
func viperValue(cmd *cobra.Command, name string) any {
	f := cmd.Flags().Lookup(name)
	switch f.Value.Type() {
	case "stringSlice":
		v, _ := cmd.Flags().GetStringSlice(name)
		return v
	case "intSlice":
		v, _ := cmd.Flags().GetIntSlice(name)
		return v
	case "bool":
		v, _ := cmd.Flags().GetBool(name)
		return v
	case "int":
		v, _ := cmd.Flags().GetInt(name)
		return v
	case "float64":
		v, _ := cmd.Flags().GetFloat64(name)
		return v
	default:
		return f.Value.String()
	}
}
