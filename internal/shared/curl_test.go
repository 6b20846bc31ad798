package shared

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'Authorization: Bearer token123' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "Authorization: Bearer token123" https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl -b 'session=abc123' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "session=abc123",
		},
		{
			name:        "cookie header is excluded from regular headers",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'Authorization: Bearer token' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token"},
			wantCookie:  "session=abc123",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl -H 'User-Agent: test' \
-H 'Accept-Language: en-US' \
https://music.youtube.com`,
			wantHeaders: map[string]string{"User-Agent": "test", "Accept-Language": "en-US"},
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://api.example.com`,
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)

			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCurlCommand() error = %v, wantErr %v", err, tc.wantErr)
			}

			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}

			if !reflect.DeepEqual(result.Headers, tc.wantHeaders) {
				t.Errorf("ParseCurlCommand() headers = %v, want %v", result.Headers, tc.wantHeaders)
			}

			if result.Cookie != tc.wantCookie {
				t.Errorf("ParseCurlCommand() cookie = %v, want %v", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")
		curlCmd := `curl -H 'User-Agent: test' -b 'SID=1' https://music.youtube.com`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}

		want := []string{"--add-header", "User-Agent:test", "--add-header", "Cookie:SID=1"}
		if got := result.ToHeaderArgs(); !reflect.DeepEqual(got, want) {
			t.Errorf("ToHeaderArgs() = %v, want %v", got, want)
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("ParseCurlFile() expected error for nonexistent file")
		}
	})
}

func TestCurlHeaders_ToHeaderArgs(t *testing.T) {
	h := &CurlHeaders{Headers: map[string]string{"b": "2", "a": "1"}}
	want := []string{"--add-header", "a:1", "--add-header", "b:2"}
	if got := h.ToHeaderArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("ToHeaderArgs() = %v, want %v", got, want)
	}

	empty := &CurlHeaders{Headers: map[string]string{}}
	if got := empty.ToHeaderArgs(); len(got) != 0 {
		t.Errorf("expected no args, got %v", got)
	}
}

func TestCurlHeaders_HTTPHeaders(t *testing.T) {
	h := &CurlHeaders{Headers: map[string]string{"User-Agent": "x"}, Cookie: "a=1"}
	want := map[string]string{"User-Agent": "x", "Cookie": "a=1"}
	if got := h.HTTPHeaders(); !reflect.DeepEqual(got, want) {
		t.Errorf("HTTPHeaders() = %v, want %v", got, want)
	}
}
