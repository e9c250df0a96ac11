// Package youtube uploads finished clips to a YouTube channel.
package youtube

import (
	"context"
	"io"
	"os"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	watchURLPrefix = "https://www.youtube.com/watch?v="
	DefaultPrivacy = "private"
)

// API is the part of the Data API the publisher uses.
type API interface {
	InsertVideo(ctx context.Context, video *yt.Video, media io.Reader) (string, error)
	SetThumbnail(ctx context.Context, videoID string, media io.Reader) error
}

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Privacy      string
}

// Validate fails fast when a credential is absent.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.ConfigMissing("YOUTUBE_CLIENT_ID")
	case c.ClientSecret == "":
		return errors.ConfigMissing("YOUTUBE_CLIENT_SECRET")
	case c.RefreshToken == "":
		return errors.ConfigMissing("YOUTUBE_REFRESH_TOKEN")
	}
	return nil
}

type Upload struct {
	VideoPath     string   `json:"videoPath" binding:"required"`
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	ThumbnailPath string   `json:"thumbnailPath"`
}

type Result struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

type Publisher struct {
	api     API
	privacy string
}

// NewPublisher builds a publisher over the real Data API using a refresh token.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{yt.YoutubeUploadScope},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	svc, err := yt.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, errors.Wrap(err, "create youtube service")
	}
	return NewPublisherWithAPI(&serviceAPI{svc: svc}, cfg.Privacy), nil
}

func NewPublisherWithAPI(api API, privacy string) *Publisher {
	if privacy == "" {
		privacy = DefaultPrivacy
	}
	return &Publisher{api: api, privacy: privacy}
}

// Publish uploads the video and, when given, its thumbnail. A failed thumbnail is
// logged and does not fail the upload.
func (p *Publisher) Publish(ctx context.Context, up Upload) (*Result, error) {
	f, err := os.Open(up.VideoPath)
	if err != nil {
		return nil, errors.Precondition("video file not found: %s", up.VideoPath)
	}
	defer f.Close()

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       up.Title,
			Description: up.Description,
			Tags:        up.Tags,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           p.privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
	id, err := p.api.InsertVideo(ctx, video, f)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "youtube upload failed")
	}

	if up.ThumbnailPath != "" {
		if err := p.setThumbnail(ctx, id, up.ThumbnailPath); err != nil {
			logger.Warn("thumbnail upload failed", zap.String("video_id", id), zap.Error(err))
		}
	}
	logger.Info("video published", zap.String("video_id", id), zap.String("title", up.Title))
	return &Result{VideoID: id, URL: watchURLPrefix + id}, nil
}

func (p *Publisher) setThumbnail(ctx context.Context, id, path string) error {
	tf, err := os.Open(path)
	if err != nil {
		return err
	}
	defer tf.Close()
	return p.api.SetThumbnail(ctx, id, tf)
}

type serviceAPI struct {
	svc *yt.Service
}

func (s *serviceAPI) InsertVideo(ctx context.Context, video *yt.Video, media io.Reader) (string, error) {
	res, err := s.svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return res.Id, nil
}

func (s *serviceAPI) SetThumbnail(ctx context.Context, videoID string, media io.Reader) error {
	_, err := s.svc.Thumbnails.Set(videoID).Media(media).Context(ctx).Do()
	return err
}
