package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/jobs"
	"github.com/spigell/resume-matcher/internal/logger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the remote jobs feed and build the postings snapshot",
	Run: func(cmd *cobra.Command, _ []string) {
		fetch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringP("category", "c", "", "restrict the feed to one job category (e.g. software-dev)")

	viper.BindPFlag("fetch.category", fetchCmd.Flags().Lookup("category"))
}

func fetch(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("fetching the jobs feed", zap.String("category", config.Fetch.Category))

	client := jobs.NewClient(ctx, logger)

	postings, err := client.Fetch(config.Fetch.Category)
	if err != nil {
		logger.Fatal("fetching jobs feed", zap.Error(err))
	}

	if postings.Len() == 0 {
		logger.Fatal("jobs feed returned no postings")
	}

	path := config.postingsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Fatal("creating jobs directory", zap.Error(err))
	}

	if err := postings.ToFile(path); err != nil {
		logger.Fatal("writing postings snapshot", zap.Error(err))
	}

	logger.Info("saved postings snapshot",
		zap.Int("count", postings.Len()),
		zap.String("path", path),
		zap.String("hint", "run 'resume-matcher index' next"),
	)
}
