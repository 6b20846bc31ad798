package youtube

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/download"
	"github.com/desertthunder/mixdeck/internal/shared"
)

const (
	watchURL    = "https://www.youtube.com/watch?v="
	playlistURL = "https://www.youtube.com/playlist?list="
	searchURL   = "https://www.youtube.com/results?search_query="
	// Search filter for playlists only.
	playlistFilter = "&sp=EgIQAw%3D%3D"
)

// WatchURL returns the page URL of a video.
func WatchURL(id string) string { return watchURL + id }

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// entry is one object of yt-dlp's flat JSON output.
type entry struct {
	ID            string      `json:"id"`
	Type          string      `json:"_type"`
	IEKey         string      `json:"ie_key"`
	URL           string      `json:"url"`
	WebpageURL    string      `json:"webpage_url"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Uploader      string      `json:"uploader"`
	Channel       string      `json:"channel"`
	Artist        string      `json:"artist"`
	Album         string      `json:"album"`
	Track         string      `json:"track"`
	Duration      float64     `json:"duration"`
	Thumbnail     string      `json:"thumbnail"`
	Thumbnails    []thumbnail `json:"thumbnails"`
	PlaylistCount int         `json:"playlist_count"`
}

type format struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
	Protocol string  `json:"protocol"`
}

// video is the full metadata of a single video.
type video struct {
	entry
	Formats []format `json:"formats"`
}

// playlistInfo is yt-dlp's single-JSON (-J) output for a playlist.
type playlistInfo struct {
	entry
	Entries []entry `json:"entries"`
}

// Client runs yt-dlp and decodes its JSON output.
type Client struct {
	executable string
	extraArgs  []string
	logger     *log.Logger
}

// NewClient creates a client for executable. extraArgs are passed to every invocation.
func NewClient(executable string, logger *log.Logger, extraArgs ...string) *Client {
	if executable == "" {
		executable = download.DefaultTool
	}
	return &Client{executable: executable, extraArgs: extraArgs, logger: shared.WithLogger(logger)}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	args = append(append([]string{"--no-warnings"}, c.extraArgs...), args...)
	cmd := exec.CommandContext(ctx, c.executable, args...)
	download.KillGroupOnCancel(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("running yt-dlp", "args", args)
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, &download.ToolMissingError{Tool: c.executable, Err: err}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	msg := strings.TrimSpace(stderr.String())
	if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
		msg = msg[i+1:]
	}
	return nil, fmt.Errorf("%w: yt-dlp: %v: %s", shared.ErrAPIRequest, err, msg)
}

// Version returns the yt-dlp version, proving the executable runs.
func (c *Client) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, c.executable, "--version")
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", &download.ToolMissingError{Tool: c.executable, Err: err}
		}
		return "", fmt.Errorf("%w: %s --version: %v", shared.ErrToolMissing, c.executable, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Search returns up to n flat results for query.
func (c *Client) Search(ctx context.Context, query string, n int) ([]entry, error) {
	out, err := c.run(ctx, "-j", "--flat-playlist", "ytsearch"+strconv.Itoa(n)+":"+query)
	if err != nil {
		return nil, err
	}
	return decodeLines(out), nil
}

// SearchPlaylists returns up to n playlists matching query.
func (c *Client) SearchPlaylists(ctx context.Context, query string, n int) ([]entry, error) {
	target := searchURL + url.QueryEscape(query) + playlistFilter
	out, err := c.run(ctx, "-j", "--flat-playlist", "--playlist-end", strconv.Itoa(n), target)
	if err != nil {
		return nil, err
	}
	return decodeLines(out), nil
}

// Video returns the metadata and formats of one video.
func (c *Client) Video(ctx context.Context, id string) (*video, error) {
	out, err := c.run(ctx, "-j", "--no-playlist", WatchURL(id))
	if err != nil {
		return nil, err
	}

	var v video
	if err := json.Unmarshal(bytes.TrimSpace(out), &v); err != nil {
		return nil, fmt.Errorf("%w: failed to decode video %s: %v", shared.ErrAPIRequest, id, err)
	}
	if v.ID == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	return &v, nil
}

// Playlist returns a playlist and up to n of its entries. n <= 0 returns all entries.
func (c *Client) Playlist(ctx context.Context, id string, n int) (*playlistInfo, error) {
	args := []string{"-J", "--flat-playlist"}
	if n > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(n))
	}
	out, err := c.run(ctx, append(args, playlistURL+id)...)
	if err != nil {
		return nil, err
	}

	var p playlistInfo
	if err := json.Unmarshal(bytes.TrimSpace(out), &p); err != nil {
		return nil, fmt.Errorf("%w: failed to decode playlist %s: %v", shared.ErrAPIRequest, id, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return &p, nil
}

// decodeLines decodes one JSON object per line, skipping lines that do not parse.
func decodeLines(out []byte) []entry {
	var entries []entry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
