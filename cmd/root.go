package cmd

import (
	"errors"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-matcher"

	postingsFile = "postings.json"
	indexFile    = "postings.idx"
)

type Config struct {
	DataDir string       `mapstructure:"data-dir"`
	Fetch   *FetchConfig `mapstructure:"fetch"`
	Match   *MatchConfig `mapstructure:"match"`
	AI      *AIConfig    `mapstructure:"ai"`
}

type FetchConfig struct {
	Category string `mapstructure:"category"`
}

type MatchConfig struct {
	Resume    string `mapstructure:"resume"`
	RetrieveK int    `mapstructure:"retrieve-k"`
	ScoreK    int    `mapstructure:"score-k"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-matcher matches a resume against remote job postings with vector retrieval and an AI fit score",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine: every setting has a default or an
	// environment fallback. A present but unparseable config is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	config.withDefaults()

	return config, nil
}

func (c *Config) withDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Fetch == nil {
		c.Fetch = &FetchConfig{}
	}
	if c.Match == nil {
		c.Match = &MatchConfig{}
	}
	if c.Match.RetrieveK <= 0 {
		c.Match.RetrieveK = 10
	}
	if c.Match.ScoreK <= 0 {
		c.Match.ScoreK = 5
	}
	if c.Match.ScoreK > c.Match.RetrieveK {
		c.Match.ScoreK = c.Match.RetrieveK
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.Gemini == nil {
		c.AI.Gemini = &GeminiConfig{}
	}
}

func (c *Config) postingsPath() string {
	return filepath.Join(c.DataDir, "jobs", postingsFile)
}

func (c *Config) indexPath() string {
	return filepath.Join(c.DataDir, "index", indexFile)
}
