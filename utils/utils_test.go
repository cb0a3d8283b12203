package utils

import (
	"testing"
	"time"
)

func TestGetYTVidIDFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/watch?list=PL1&v=abc123", want: "abc123"},
		{url: "https://youtu.be/abc123?t=3", want: "abc123"},
		{url: "https://soundcloud.com/artist/track", want: ""},
		{url: "https://example.com/?nav=1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			if got := GetYTVidIDFromURL(tt.url); got != tt.want {
				t.Errorf("GetYTVidIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{in: "https://youtu.be/abc", want: true},
		{in: "http://soundcloud.com/a/b", want: true},
		{in: "never gonna give you up", want: false},
		{in: "ftp://example.com/song.mp3", want: false},
		{in: "https://", want: false},
		{in: "", want: false},
	}

	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00"},
		{in: 59 * time.Second, want: "00:59"},
		{in: 3*time.Minute + 33*time.Second, want: "03:33"},
		{in: time.Hour + 2*time.Minute + 3*time.Second, want: "01:02:03"},
		{in: 12*time.Hour + 5*time.Second, want: "12:00:05"},
		{in: 1500 * time.Millisecond, want: "00:02"},
		{in: -time.Second, want: "00:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
