package jobs

import (
	"fmt"
	"regexp"
	"strings"
)

// Job descriptions arrive as HTML with boilerplate legal blocks. Cleanup is
// best-effort: strip tags, drop the usual EEO/background-check spam, collapse
// whitespace and cap length so one oversized description cannot blow the
// embedding budget.
const descriptionMaxChars = 2500

var (
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)

	noiseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)equal opportunity employer.*`),
		regexp.MustCompile(`(?i)we are an equal opportunity employer.*`),
		regexp.MustCompile(`(?i)accommodation.*disability.*`),
		regexp.MustCompile(`(?i)all qualified applicants.*`),
		regexp.MustCompile(`(?i)background check.*`),
	}

	htmlEntities = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
	)
)

func stripHTML(text string) string {
	return htmlEntities.Replace(htmlTagRe.ReplaceAllString(text, " "))
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func removeCommonNoise(text string) string {
	for _, re := range noiseRes {
		text = re.ReplaceAllString(text, " ")
	}
	return normalizeWhitespace(text)
}

// CleanDescription turns a raw HTML job description into capped plain text.
func CleanDescription(raw string) string {
	desc := removeCommonNoise(stripHTML(raw))
	if len(desc) > descriptionMaxChars {
		desc = desc[:descriptionMaxChars]
	}
	return desc
}

// BuildCleanText assembles the normalized description used for both
// embedding and scoring prompts.
func BuildCleanText(p *Posting, description string) string {
	parts := []string{
		fmt.Sprintf("Title: %s", p.Title),
		fmt.Sprintf("Company: %s", p.Company),
	}
	if p.Location != "" {
		parts = append(parts, fmt.Sprintf("Location: %s", p.Location))
	}
	if len(p.Tags) > 0 {
		parts = append(parts, fmt.Sprintf("Tags: %s", strings.Join(p.Tags, ", ")))
	}
	parts = append(parts, "Description:", description)

	return strings.Join(parts, "\n")
}
