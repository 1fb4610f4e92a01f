package youtube

import (
	"errors"
	"testing"
)

// TestExtractVideoID covers the accepted URL shapes.
func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch with extra params", "https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=30", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/ABCDEFG1234", "ABCDEFG1234"},
		{"short link with query", "https://youtu.be/ABCDEFG1234?t=42", "ABCDEFG1234"},
		{"embed", "https://www.youtube.com/embed/xX-yY_zZ000", "xX-yY_zZ000"},
		{"shorts", "https://www.youtube.com/shorts/short_vid-1", "short_vid-1"},
		{"no scheme", "www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"surrounding whitespace", "  https://youtu.be/ABCDEFG1234  ", "ABCDEFG1234"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractVideoID(tc.url)
			if err != nil {
				t.Fatalf("ExtractVideoID(%q) error = %v", tc.url, err)
			}
			if got != tc.want {
				t.Fatalf("ExtractVideoID(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

// TestExtractVideoIDRejectsInvalid checks malformed references.
func TestExtractVideoIDRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/playlist?list=PL1",
		"not a url at all",
	}

	for _, raw := range cases {
		if _, err := ExtractVideoID(raw); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("ExtractVideoID(%q) error = %v, want %v", raw, err, ErrInvalidReference)
		}
	}
}

// TestWatchURL checks canonical URL construction.
func TestWatchURL(t *testing.T) {
	got := WatchURL("dQw4w9WgXcQ")
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	if got != want {
		t.Fatalf("WatchURL = %q, want %q", got, want)
	}
}
