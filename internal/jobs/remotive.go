package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	remotiveAPIURL = "https://remotive.com/api/remote-jobs"
	userAgent      = "spigell/resume-matcher"
)

// Client fetches job postings from the Remotive public feed.
type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func NewClient(ctx context.Context, logger *zap.Logger) *Client {
	return &Client{
		ctx:    ctx,
		APIURL: remotiveAPIURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// remotiveJob mirrors the feed's field names before normalization. The feed
// sends numeric ids; weakly typed decoding turns them into strings.
type remotiveJob struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	CompanyName string   `json:"company_name"`
	Location    string   `json:"candidate_required_location"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

type remotiveResponse struct {
	Jobs []map[string]any `json:"jobs"`
}

// Fetch downloads the feed and normalizes every job into a Posting with
// cleaned description text. The returned order is the feed order and becomes
// the corpus order once the snapshot is written.
func (c *Client) Fetch(category string) (*Postings, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.APIURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	if category != "" {
		q := req.URL.Query()
		q.Set("category", category)
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch remotive feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remotive feed: bad status: %s", resp.Status)
	}

	var feed remotiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode remotive feed: %w", err)
	}

	c.logger.Debug("got response from remotive", zap.Int("jobs", len(feed.Jobs)))

	postings := &Postings{}
	for _, item := range feed.Jobs {
		var job remotiveJob
		cfg := &mapstructure.DecoderConfig{
			Result:           &job,
			TagName:          "json",
			WeaklyTypedInput: true,
		}
		decoder, _ := mapstructure.NewDecoder(cfg)
		if err := decoder.Decode(item); err != nil {
			c.logger.Warn("skipping undecodable job", zap.Error(err))
			continue
		}

		postings.Items = append(postings.Items, job.toPosting())
	}

	return postings, nil
}

func (j *remotiveJob) toPosting() *Posting {
	posting := &Posting{
		ID:       j.ID,
		Title:    strings.TrimSpace(j.Title),
		Company:  strings.TrimSpace(j.CompanyName),
		Location: strings.TrimSpace(j.Location),
		URL:      j.URL,
		Tags:     j.Tags,
	}

	posting.CleanText = BuildCleanText(posting, CleanDescription(j.Description))

	return posting
}
