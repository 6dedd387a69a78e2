package utils

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidVideoRef is returned by NormalizeVideoRef for input that is
// neither a video id nor a YouTube URL.
var ErrInvalidVideoRef = errors.New("invalid YouTube video reference")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

func ExtractYouTubeID(youtubeURL string) (string, error) {
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	host := strings.ToLower(u.Host)
	var id string

	switch {
	case strings.Contains(host, "youtu.be"):
		id = strings.TrimPrefix(u.Path, "/")
	case strings.Contains(host, "youtube.com"):
		switch {
		case strings.HasPrefix(u.Path, "/watch"):
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/v/"):
			id = strings.TrimPrefix(u.Path, "/v/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	default:
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if i := strings.Index(id, "/"); i != -1 {
		id = id[:i]
	}
	if id == "" {
		return "", fmt.Errorf("unable to extract video ID from URL: %s", youtubeURL)
	}
	return id, nil
}

func IsYouTubeURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Host)
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

// NormalizeVideoRef accepts either a bare video id or a YouTube URL and
// returns the id.
func NormalizeVideoRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if videoIDPattern.MatchString(ref) {
		return ref, nil
	}
	if IsYouTubeURL(ref) {
		id, err := ExtractYouTubeID(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidVideoRef, err)
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVideoRef, ref)
}
