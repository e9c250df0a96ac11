// Package transcript fetches YouTube transcripts and oEmbed previews of reference videos.
package transcript

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"VidFlow/pkg/cache"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultEndpoint  = "https://transcriptapi.com/api/v2/youtube/transcript"
	defaultFetchJobs = 4
)

// Fetcher returns the spoken text of a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoURL string) (string, error)
}

type Config struct {
	APIKey   string
	Endpoint string
	CacheTTL time.Duration
	Timeout  time.Duration
	// MaxConcurrent bounds FetchAll
	MaxConcurrent int
}

type Client struct {
	cfg   Config
	http  *http.Client
	cache cache.Cache
}

// NewClient creates a transcript client. c may be nil to disable caching.
func NewClient(cfg Config, c cache.Cache) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultFetchJobs
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, cache: c}
}

type segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type transcriptResponse struct {
	VideoID    string    `json:"video_id"`
	Language   string    `json:"language"`
	Transcript []segment `json:"transcript"`
}

func cacheKey(videoURL string) string {
	return "transcript:" + videoURL
}

// Fetch returns the transcript segments of videoURL joined with ". ".
func (c *Client) Fetch(ctx context.Context, videoURL string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.ConfigMissing("TRANSCRIPT_API_KEY")
	}
	if strings.TrimSpace(videoURL) == "" {
		return "", errors.Precondition("video url is empty")
	}
	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, cacheKey(videoURL)); ok {
			return string(text), nil
		}
	}

	endpoint := c.cfg.Endpoint + "?video_url=" + url.QueryEscape(videoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.WrapCode(err, errors.CodeUpstream, "create transcript request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.WrapCode(err, errors.CodeUpstream, "transcript request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return "", errors.WrapCode(err, errors.CodeUpstream, "read transcript error body").WithContext("video_url", videoURL)
		}
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &body)
		return "", errors.Upstream("transcript api", resp.StatusCode, body.Message).WithContext("video_url", videoURL)
	}

	var data transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", errors.WrapCode(err, errors.CodeParse, "decode transcript response")
	}
	texts := make([]string, len(data.Transcript))
	for i, s := range data.Transcript {
		texts[i] = s.Text
	}
	full := strings.Join(texts, ". ")

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey(videoURL), []byte(full), c.cfg.CacheTTL); err != nil {
			logger.Warn("cache transcript failed", zap.String("url", videoURL), zap.Error(err))
		}
	}
	logger.Debug("transcript fetched",
		zap.String("video_id", data.VideoID),
		zap.String("language", data.Language),
		zap.Int("segments", len(data.Transcript)))
	return full, nil
}

// Result is the settled outcome for one url of FetchAll.
type Result struct {
	URL        string `json:"url"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FetchAll fetches every url concurrently. One failure never cancels the others;
// results keep the input order.
func (c *Client) FetchAll(ctx context.Context, urls []string) []Result {
	return fetchAll(ctx, c, urls, c.cfg.MaxConcurrent)
}

func fetchAll(ctx context.Context, f Fetcher, urls []string, limit int) []Result {
	results := make([]Result, len(urls))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			results[i].URL = u
			text, err := f.Fetch(ctx, u)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Transcript = text
			return nil
		})
	}
	_ = g.Wait()
	return results
}
