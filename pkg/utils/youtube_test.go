package utils

import (
	"errors"
	"testing"
)

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"short link", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"v path", "https://youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch without id", "https://www.youtube.com/watch", "", true},
		{"other host", "https://vimeo.com/12345", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractYouTubeID(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractYouTubeID(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractYouTubeID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestNormalizeVideoRef(t *testing.T) {
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"  dQw4w9WgXcQ ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short", "", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeVideoRef(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeVideoRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidVideoRef) {
			t.Errorf("NormalizeVideoRef(%q) error = %v, want ErrInvalidVideoRef", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeVideoRef(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestIsYouTubeURL(t *testing.T) {
	if !IsYouTubeURL("https://m.youtube.com/watch?v=x") {
		t.Error("Expected mobile YouTube URL to be recognised")
	}
	if IsYouTubeURL("not a url at all") {
		t.Error("Expected plain text to be rejected")
	}
}
