package captions

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"video-summary/internal/domain"
)

const defaultTimedTextBaseURL = "https://www.youtube.com/api/timedtext"

// YouTubeSource resolves caption manifests and track text through the
// YouTube timedtext endpoint.
type YouTubeSource struct {
	client  *http.Client
	baseURL string
}

// NewYouTubeSource creates a source using the given HTTP client.
func NewYouTubeSource(client *http.Client) *YouTubeSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeSource{client: client, baseURL: defaultTimedTextBaseURL}
}

// NewYouTubeSourceForTests creates a source pointed at a test server.
func NewYouTubeSourceForTests(client *http.Client, baseURL string) *YouTubeSource {
	return &YouTubeSource{client: client, baseURL: baseURL}
}

// trackList mirrors the timedtext manifest XML.
type trackList struct {
	Tracks []struct {
		LangCode       string `xml:"lang_code,attr"`
		LangTranslated string `xml:"lang_translated,attr"`
		Name           string `xml:"name,attr"`
	} `xml:"track"`
}

// transcript mirrors the timedtext caption body XML.
type transcript struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// Manifest lists the caption tracks available for a video.
func (s *YouTubeSource) Manifest(ctx context.Context, videoID string) ([]domain.CaptionTrack, error) {
	query := url.Values{}
	query.Set("type", "list")
	query.Set("v", videoID)

	body, err := s.get(ctx, query)
	if err != nil {
		return nil, err
	}

	var list trackList
	if err := xml.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode caption manifest: %w", err)
	}

	tracks := make([]domain.CaptionTrack, 0, len(list.Tracks))
	for _, t := range list.Tracks {
		tracks = append(tracks, domain.CaptionTrack{
			LanguageCode: t.LangCode,
			LanguageName: t.LangTranslated,
			Name:         t.Name,
		})
	}
	return tracks, nil
}

// Fetch downloads the caption text lines for one track.
func (s *YouTubeSource) Fetch(ctx context.Context, videoID string, track domain.CaptionTrack) ([]string, error) {
	query := url.Values{}
	query.Set("v", videoID)
	query.Set("lang", track.LanguageCode)
	if track.Name != "" {
		query.Set("name", track.Name)
	}

	body, err := s.get(ctx, query)
	if err != nil {
		return nil, err
	}

	var doc transcript
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode caption track: %w", err)
	}

	lines := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		lines = append(lines, t.Value)
	}
	return lines, nil
}

// get performs one timedtext request and returns the response body.
func (s *YouTubeSource) get(ctx context.Context, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build caption request: %w", err)
	}
	req.Header.Set("User-Agent", "video-summary")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("caption request returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read caption response: %w", err)
	}
	return body, nil
}
