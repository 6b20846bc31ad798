package models

import "fmt"

// Phase of a single download.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseDownloading
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseDownloading:
		return "downloading"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no further events follow this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// DownloadProgress is one progress event of a single download.
//
// Per download, a [PhaseStarting] event comes first and exactly one terminal event comes last.
// Downloaded never decreases between events. Consumers correlate concurrent downloads by Song.
type DownloadProgress struct {
	Song       *Song
	Phase      Phase
	Downloaded int64
	Total      int64 // Zero when unknown
	Status     string
}

// Percent returns Downloaded*100/Total, or 0 when the total is unknown.
func (p DownloadProgress) Percent() int64 {
	if p.Total <= 0 {
		return 0
	}
	return p.Downloaded * 100 / p.Total
}

// ProgressFunc receives progress events of a download. Calls happen on the downloading goroutine, in order.
type ProgressFunc func(DownloadProgress)

// Emit calls f when it is set.
func (f ProgressFunc) Emit(p DownloadProgress) {
	if f != nil {
		f(p)
	}
}

// StartingProgress is the first event of every download.
func StartingProgress(song *Song) DownloadProgress {
	return DownloadProgress{Song: song, Phase: PhaseStarting, Status: "Starting..."}
}

// DownloadingProgress reports transferred bytes.
func DownloadingProgress(song *Song, downloaded, total int64) DownloadProgress {
	p := DownloadProgress{Song: song, Phase: PhaseDownloading, Downloaded: downloaded, Total: total}
	if total > 0 {
		p.Status = fmt.Sprintf("%d%%", p.Percent())
	} else {
		p.Status = fmt.Sprintf("%d bytes", downloaded)
	}
	return p
}

// CompletedProgress is the terminal event of a successful download.
func CompletedProgress(song *Song, downloaded, total int64) DownloadProgress {
	return DownloadProgress{Song: song, Phase: PhaseCompleted, Downloaded: downloaded, Total: total, Status: "Download completed"}
}

// FailedProgress is the terminal event of a failed download.
func FailedProgress(song *Song, downloaded int64, err error) DownloadProgress {
	status := "Download failed"
	if err != nil {
		status = fmt.Sprintf("Download failed: %v", err)
	}
	return DownloadProgress{Song: song, Phase: PhaseFailed, Downloaded: downloaded, Status: status}
}
