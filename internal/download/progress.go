package download

import (
	"math"
	"strconv"
	"strings"
)

// ProgressPrefix starts every progress line printed by the extraction tool.
const ProgressPrefix = "download:"

// ProgressTemplate makes yt-dlp print "download:<downloaded>/<total>" lines.
const ProgressTemplate = ProgressPrefix + "%(progress.downloaded_bytes)s/%(progress.total_bytes)s"

// ParseProgressLine parses "download:<downloaded>/<total>". A total of "NA" means unknown and yields 0.
// ok is false for any other line.
func ParseProgressLine(line string) (downloaded, total int64, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), ProgressPrefix)
	if !found {
		return 0, 0, false
	}

	d, t, found := strings.Cut(rest, "/")
	if !found {
		return 0, 0, false
	}

	downloaded, ok = parseBytes(d)
	if !ok {
		return 0, 0, false
	}

	if total, ok = parseBytes(t); !ok {
		total = 0
	}
	return downloaded, total, true
}

func parseBytes(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f < math.MaxInt64 {
		return int64(f), true
	}
	return 0, false
}
