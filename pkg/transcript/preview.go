package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"VidFlow/pkg/errors"
)

const DefaultOEmbedURL = "https://www.youtube.com/oembed"

// Preview is the oEmbed summary of a video.
type Preview struct {
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail"`
	AuthorName string `json:"authorName"`
}

type Previewer struct {
	endpoint string
	http     *http.Client
}

func NewPreviewer(endpoint string, timeout time.Duration) *Previewer {
	if endpoint == "" {
		endpoint = DefaultOEmbedURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Previewer{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

func (p *Previewer) Preview(ctx context.Context, videoURL string) (*Preview, error) {
	if videoURL == "" {
		return nil, errors.Precondition("video url is empty")
	}
	endpoint := p.endpoint + "?url=" + url.QueryEscape(videoURL) + "&format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "create oembed request")
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "oembed request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Upstream("youtube oembed", resp.StatusCode, "failed to fetch YouTube preview")
	}

	var data struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
		AuthorName   string `json:"author_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errors.WrapCode(err, errors.CodeParse, "decode oembed response")
	}
	return &Preview{Title: data.Title, Thumbnail: data.ThumbnailURL, AuthorName: data.AuthorName}, nil
}
