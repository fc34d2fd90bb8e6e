package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"newsreel/internal/services"
)

const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 5000
)

// Config holds OAuth credentials and upload defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Privacy      string
	CategoryID   string
	Tags         []string
}

// Metadata describes one upload.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// Uploader publishes videos through the YouTube Data API.
type Uploader struct {
	svc *yt.Service
	cfg Config
}

// New authenticates with the stored refresh token and builds an uploader.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" || strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, "distribution", "youtube auth", "oauth credentials incomplete", nil),
			"set YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, and YOUTUBE_REFRESH_TOKEN",
		)
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{yt.YoutubeUploadScope},
	}
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewWithOptions(ctx, cfg, option.WithHTTPClient(oauth2.NewClient(ctx, source)))
}

// NewWithOptions builds an uploader from explicit API client options.
func NewWithOptions(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Uploader, error) {
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "distribution", "youtube service", "", err)
	}
	return &Uploader{svc: svc, cfg: cfg}, nil
}

// Upload inserts the video and returns its platform ID. Every failure is
// reported as services.ErrUpload; the caller decides on the fallback.
func (u *Uploader) Upload(ctx context.Context, videoPath string, meta Metadata) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", services.Wrap(services.ErrAssetMissing, "distribution", "youtube upload", "open "+videoPath, err)
	}
	defer file.Close()

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       truncateRunes(strings.TrimSpace(meta.Title), maxTitleRunes),
			Description: truncateRunes(strings.TrimSpace(meta.Description), maxDescriptionRunes),
			Tags:        mergeTags(u.cfg.Tags, meta.Tags),
			CategoryId:  u.cfg.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           u.cfg.Privacy,
			SelfDeclaredMadeForKids: false,
		},
	}
	call := u.svc.Videos.Insert([]string{"snippet", "status"}, video).Media(file).Context(ctx)
	uploaded, err := call.Do()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify(err)
	}
	if uploaded == nil || strings.TrimSpace(uploaded.Id) == "" {
		return "", services.Wrap(services.ErrUpload, "distribution", "youtube upload", "response carried no video id", nil)
	}
	return uploaded.Id, nil
}

// WatchURL returns the public link for an uploaded video.
func WatchURL(id string) string {
	return "https://www.youtube.com/shorts/" + id
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("http %d", apiErr.Code)
		if len(apiErr.Errors) > 0 && apiErr.Errors[0].Reason != "" {
			msg += " " + apiErr.Errors[0].Reason
		}
		wrapped := services.Wrap(services.ErrUpload, "distribution", "youtube upload", msg, err)
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return services.WithHint(wrapped, "refresh the YouTube OAuth token or check the channel quota")
		}
		return wrapped
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return services.WithHint(
			services.Wrap(services.ErrUpload, "distribution", "youtube auth", "token refresh failed", err),
			"refresh the YouTube OAuth token",
		)
	}
	return services.Wrap(services.ErrUpload, "distribution", "youtube upload", "request failed", err)
}

func mergeTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	var tags []string
	for _, list := range [][]string{base, extra} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
