package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Scorer judges one (resume, posting) pair with a generative model and
// parses its semi-structured reply into a typed result. The reply channel is
// untrusted: every deviation from the expected format degrades to a field's
// zero value, never to an error.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	// promptInputMaxChars caps each side of the prompt independently so the
	// total request size stays bounded.
	promptInputMaxChars = 1500

	labelFitScore        = "FIT_SCORE"
	labelMatchedSkills   = "MATCHED_SKILLS"
	labelMissingSkills   = "MISSING_SKILLS"
	labelRecommendations = "RECOMMENDATIONS"
	labelSummary         = "SUMMARY"
)

// A leading minus is included so that an out-of-range negative score clamps
// to zero instead of losing its sign.
var digitsRe = regexp.MustCompile(`-?\d+`)

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Score builds the scoring prompt, calls the model and parses the reply.
// A provider failure surfaces as ErrScoringUnavailable; a malformed reply
// never does.
func (s *Scorer) Score(ctx context.Context, resumeText, jobText string) (*ai.ScoringResult, error) {
	prompt := buildPrompt(trim(resumeText, promptInputMaxChars), trim(jobText, promptInputMaxChars))

	s.logger.Debug("gemini scoring request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("score posting: %w", errors.Join(ai.ErrScoringUnavailable, err))
	}

	s.logger.Debug("gemini scoring response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	result := parseReply(raw)
	result.Raw = raw

	return result, nil
}

func buildPrompt(resumeText, jobText string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Score the match.\nRESUME: {{RESUME}}\nJOB: {{JOB}}"
	}
	prompt := strings.ReplaceAll(template, "{{RESUME}}", resumeText)
	prompt = strings.ReplaceAll(prompt, "{{JOB}}", jobText)
	return prompt
}

func trim(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

// parseReply scans the reply for the five expected labels. Each label is
// located independently and case-insensitively; the first matching line per
// label wins and absent labels keep their zero values.
func parseReply(raw string) *ai.ScoringResult {
	lines := splitLines(raw)

	result := &ai.ScoringResult{
		MatchedSkills:   []string{},
		MissingSkills:   []string{},
		Recommendations: []string{},
	}

	if line, ok := grabLine(lines, labelFitScore); ok {
		// Digits are searched in the whole line, so prose around the number
		// or a missing colon still yields a score.
		result.FitScore = clampScore(firstInt(strings.TrimPrefix(strings.ToUpper(line), labelFitScore)))
	}
	if value, ok := grab(lines, labelMatchedSkills); ok {
		result.MatchedSkills = splitList(value)
	}
	if value, ok := grab(lines, labelMissingSkills); ok {
		result.MissingSkills = splitList(value)
	}
	if value, ok := grab(lines, labelRecommendations); ok {
		result.Recommendations = splitList(value)
	}
	if value, ok := grab(lines, labelSummary); ok {
		result.Summary = strings.TrimSpace(strings.ReplaceAll(value, "\n", " "))
	}

	return result
}

func splitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// grabLine returns the first line starting with the label, ignoring case.
func grabLine(lines []string, label string) (string, bool) {
	for _, line := range lines {
		if strings.HasPrefix(strings.ToUpper(line), label) {
			return line, true
		}
	}
	return "", false
}

// grab returns the text after the first colon of the first line starting
// with the label, ignoring case.
func grab(lines []string, label string) (string, bool) {
	line, ok := grabLine(lines, label)
	if !ok {
		return "", false
	}
	_, value, found := strings.Cut(line, ":")
	if !found {
		return "", true
	}
	return strings.TrimSpace(value), true
}

// firstInt extracts the first run of decimal digits anywhere in the value,
// guarding against prose around the number.
func firstInt(value string) int {
	match := digitsRe.FindString(value)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// splitList splits a comma-delimited field, stripping whitespace and leading
// bullet punctuation and discarding empty items.
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		item = strings.Trim(item, " -•*\t")
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
