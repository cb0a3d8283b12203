package ytutils

import "testing"

func TestParseMeta_Video(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"_type":"video","id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up","duration":213,"webpage_url":"https://www.youtube.com/watch?v=dQw4w9WgXcQ","extractor_key":"Youtube"}`)

	meta, err := ParseMeta(raw)
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if meta.Type != MetaVideo {
		t.Errorf("Type = %q, want %q", meta.Type, MetaVideo)
	}
	if meta.Name() != "Never Gonna Give You Up" {
		t.Errorf("Name() = %q", meta.Name())
	}
	if meta.Duration != 213 {
		t.Errorf("Duration = %v, want 213", meta.Duration)
	}
	if meta.Link() != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("Link() = %q", meta.Link())
	}
}

func TestParseMeta_FlatPlaylist(t *testing.T) {
	t.Parallel()

	raw := []byte("{\"_type\":\"playlist\",\"title\":\"Mix\",\"entries\":[" +
		"{\"_type\":\"url\",\"ie_key\":\"Youtube\",\"id\":\"a1\",\"title\":\"First\",\"duration\":60}," +
		"{\"_type\":\"url\",\"ie_key\":\"Youtube\",\"id\":\"b2\",\"title\":\"Second\",\"url\":\"https://www.youtube.com/watch?v=b2\"}" +
		"]}\u0000\u0000")

	meta, err := ParseMeta(raw)
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if meta.Type != MetaPlayList {
		t.Fatalf("Type = %q, want %q", meta.Type, MetaPlayList)
	}
	if len(meta.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(meta.Entries))
	}
	if got := meta.Entries[0].Link(); got != "https://www.youtube.com/watch?v=a1" {
		t.Errorf("Entries[0].Link() = %q", got)
	}
	if got := meta.Entries[1].Link(); got != "https://www.youtube.com/watch?v=b2" {
		t.Errorf("Entries[1].Link() = %q", got)
	}
}

func TestParseMeta_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseMeta([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func TestSearchTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		search bool
	}{
		{in: "https://youtu.be/abc", want: "https://youtu.be/abc"},
		{in: "  lofi beats  ", want: "ytsearch1:lofi beats", search: true},
		{in: "https://soundcloud.com/a/b", want: "https://soundcloud.com/a/b"},
	}

	for _, tt := range tests {
		got := SearchTarget(tt.in)
		if got != tt.want {
			t.Errorf("SearchTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if IsSearch(got) != tt.search {
			t.Errorf("IsSearch(%q) = %v, want %v", got, IsSearch(got), tt.search)
		}
	}
}
