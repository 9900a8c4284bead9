package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/ai/gemini"
	"github.com/spigell/resume-matcher/internal/index"
	"github.com/spigell/resume-matcher/internal/jobs"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/secrets"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the postings snapshot and build the vector index",
	Run: func(cmd *cobra.Command, _ []string) {
		buildIndex(cmd)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func buildIndex(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	postings, err := jobs.FromFile(config.postingsPath())
	if err != nil {
		logger.Fatal("loading postings snapshot",
			zap.Error(err),
			zap.String("hint", "run 'resume-matcher fetch' first"),
		)
	}

	if postings.Len() == 0 {
		logger.Fatal("postings snapshot is empty")
	}

	client, err := newGeminiClient(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building gemini client", zap.Error(err))
	}

	logger.Info("embedding postings",
		zap.Int("count", postings.Len()),
		zap.String("embedding_model", client.EmbeddingModel()),
	)

	vectors, err := client.EmbedBatch(ctx, postings.Texts())
	if err != nil {
		logger.Fatal("embedding postings", zap.Error(err))
	}

	idx, err := index.Build(vectors)
	if err != nil {
		logger.Fatal("building vector index", zap.Error(err))
	}

	path := config.indexPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Fatal("creating index directory", zap.Error(err))
	}

	if err := idx.Save(path); err != nil {
		logger.Fatal("writing vector index", zap.Error(err))
	}

	logger.Info("saved vector index",
		zap.Int("vectors", idx.Len()),
		zap.Int("dimension", idx.Dim()),
		zap.String("path", path),
	)
}

func newGeminiClient(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*gemini.Client, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	clientLogger := logger.WithCommonFields(log, "gemini", cfg.Gemini.Model, cfg.Gemini.EmbeddingModel)

	return gemini.NewClient(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.EmbeddingModel, cfg.Gemini.MaxRetries, clientLogger)
}
