package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/ai/gemini"
	"github.com/spigell/resume-matcher/internal/index"
	"github.com/spigell/resume-matcher/internal/jobs"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/matcher"
	"github.com/spigell/resume-matcher/internal/resume"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var scorePrompt = promptui.Select{
	Label: "Score the retrieved postings with the generative model?",
	Items: []string{PromptYes, PromptNo},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank job postings against a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "path to the resume file (txt, pdf or docx)")
	matchCmd.Flags().Int("retrieve-k", 0, "how many postings to retrieve from the vector index")
	matchCmd.Flags().Int("score-k", 0, "how many retrieved postings to score with the generative model")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before the scoring stage")
	matchCmd.Flags().Bool("dump", false, "dump the full ranked results to a temporary json file")

	viper.BindPFlag("match.resume", matchCmd.Flags().Lookup("resume"))
	viper.BindPFlag("match.retrieve-k", matchCmd.Flags().Lookup("retrieve-k"))
	viper.BindPFlag("match.score-k", matchCmd.Flags().Lookup("score-k"))
}

// match is the main command for the cli.
func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Match.Resume == "" {
		logger.Fatal("a resume file is required under match.resume or the --resume flag")
	}

	doc, err := resume.Load(config.Match.Resume)
	if err != nil {
		logger.Fatal("loading resume", zap.Error(err), zap.String("path", config.Match.Resume))
	}

	logger.Info("loaded resume",
		zap.String("path", config.Match.Resume),
		zap.Int("characters", len(doc.Text)),
	)

	postings, err := jobs.FromFile(config.postingsPath())
	if err != nil {
		logger.Fatal("loading postings snapshot",
			zap.Error(err),
			zap.String("hint", "run 'resume-matcher fetch' first"),
		)
	}

	idx, err := index.Load(config.indexPath())
	if err != nil {
		logger.Fatal("loading vector index",
			zap.Error(err),
			zap.String("hint", "run 'resume-matcher index' first"),
		)
	}

	if idx.Len() != postings.Len() {
		logger.Fatal("vector index and postings snapshot are misaligned",
			zap.Int("vectors", idx.Len()),
			zap.Int("postings", postings.Len()),
			zap.String("hint", "re-run 'resume-matcher index'"),
		)
	}

	client, err := newGeminiClient(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building gemini client", zap.Error(err))
	}

	var scorer ai.Scorer
	if confirmScoring(cmd, config, logger) {
		scorer = gemini.NewScorer(client, logger, config.AI.Gemini.MaxLogLength)
	} else {
		logger.Info("skipping the scoring stage", zap.String("reason", "got no from prompt"))
	}

	results, err := matcher.New(client, scorer, idx, postings, logger).
		Run(ctx, doc.Text, config.Match.RetrieveK, config.Match.ScoreK)
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	if len(results) == 0 {
		logger.Info("exiting", zap.String("reason", "no postings retrieved"))
		return
	}

	printResults(results)

	if cmd.Flag("dump").Value.String() == "true" {
		filename, err := dumpToTmpFile(results)
		if err != nil {
			logger.Fatal("dump results to file", zap.Error(err))
		}
		logger.Info("dumping results to file", zap.String("filename", filename))
	}
}

// confirmScoring gates the paid generative stage behind an interactive
// prompt unless --auto-approve was given.
func confirmScoring(cmd *cobra.Command, config *Config, logger *zap.Logger) bool {
	if config.Match.ScoreK <= 0 {
		return false
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return true
	}

	_, action, err := scorePrompt.Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	return action == PromptYes
}

func printResults(results []*matcher.Result) {
	fmt.Printf("\nTop %d matches:\n", len(results))

	for i, result := range results {
		posting := result.Posting

		fmt.Printf("\n%d. %s / %s\n", i+1, posting.Title, posting.Company)
		if posting.Location != "" {
			fmt.Printf("   location:   %s\n", posting.Location)
		}
		fmt.Printf("   url:        %s\n", posting.URL)
		fmt.Printf("   similarity: %.4f\n", result.Similarity)

		if !result.Scored() {
			continue
		}

		fmt.Printf("   fit score:  %d/100\n", result.Scoring.FitScore)
		if len(result.Scoring.MatchedSkills) > 0 {
			fmt.Printf("   matched:    %s\n", strings.Join(result.Scoring.MatchedSkills, ", "))
		}
		if len(result.Scoring.MissingSkills) > 0 {
			fmt.Printf("   missing:    %s\n", strings.Join(result.Scoring.MissingSkills, ", "))
		}
		if len(result.Scoring.Recommendations) > 0 {
			fmt.Printf("   advice:     %s\n", strings.Join(result.Scoring.Recommendations, ", "))
		}
		if result.Scoring.Summary != "" {
			fmt.Printf("   summary:    %s\n", result.Scoring.Summary)
		}
	}
}

func dumpToTmpFile(results []*matcher.Result) (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	pretty, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}

	if _, err := file.Write(pretty); err != nil {
		return "", err
	}

	return file.Name(), nil
}
