package models

import "testing"

func TestAudioStreamInfo(t *testing.T) {
	t.Run("NewAudioStreamInfo", func(t *testing.T) {
		tt := []struct {
			name          string
			ext           string
			wantExt       string
			wantCodec     string
			wantContainer string
		}{
			{name: "mp3", ext: "mp3", wantExt: "mp3", wantCodec: "mp3", wantContainer: "mp3"},
			{name: "m4a", ext: "m4a", wantExt: "m4a", wantCodec: "aac", wantContainer: "mp4"},
			{name: "upper case with dot", ext: ".OPUS", wantExt: "opus", wantCodec: "opus", wantContainer: "ogg"},
			{name: "webm", ext: "webm", wantExt: "webm", wantCodec: "opus", wantContainer: "webm"},
			{name: "unknown extension degrades", ext: "xyz", wantExt: "xyz", wantCodec: DefaultCodec, wantContainer: DefaultContainer},
			{name: "empty extension", ext: "", wantExt: DefaultExtension, wantCodec: "aac", wantContainer: "mp4"},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				info := NewAudioStreamInfo("https://example.com/a", tc.ext, 128)
				if info.Extension != tc.wantExt {
					t.Errorf("Extension = %q, want %q", info.Extension, tc.wantExt)
				}
				if info.Codec != tc.wantCodec {
					t.Errorf("Codec = %q, want %q", info.Codec, tc.wantCodec)
				}
				if info.Container != tc.wantContainer {
					t.Errorf("Container = %q, want %q", info.Container, tc.wantContainer)
				}
			})
		}
	})

	t.Run("IsFetchable", func(t *testing.T) {
		if !NewAudioStreamInfo("https://example.com/a.m4a", "m4a", 0).IsFetchable() {
			t.Error("https URL should be fetchable")
		}
		if NewAudioStreamInfo("spotify:track:abc", "mp3", 320).IsFetchable() {
			t.Error("pseudo-URI should not be fetchable")
		}
	})
}

func TestBestStream(t *testing.T) {
	t.Run("Highest Bitrate Wins", func(t *testing.T) {
		streams := []AudioStreamInfo{
			NewAudioStreamInfo("a", "m4a", 128),
			NewAudioStreamInfo("b", "mp3", 320),
			NewAudioStreamInfo("c", "ogg", 256),
		}

		best := BestStream(streams)
		if best == nil {
			t.Fatal("expected a stream")
		}
		if best.Bitrate != 320 || best.Extension != "mp3" {
			t.Errorf("expected 320 kbps mp3, got %d kbps %s", best.Bitrate, best.Extension)
		}
	})

	t.Run("Ties Broken By Order", func(t *testing.T) {
		streams := []AudioStreamInfo{
			NewAudioStreamInfo("first", "m4a", 160),
			NewAudioStreamInfo("second", "opus", 160),
		}

		if best := BestStream(streams); best.URL != "first" {
			t.Errorf("expected first stream, got %s", best.URL)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if BestStream(nil) != nil {
			t.Error("expected nil for empty list")
		}
	})

	t.Run("Returns Copy", func(t *testing.T) {
		streams := []AudioStreamInfo{NewAudioStreamInfo("a", "mp3", 128)}
		best := BestStream(streams)
		best.URL = "changed"
		if streams[0].URL != "a" {
			t.Error("BestStream should not alias the input slice")
		}
	})
}
