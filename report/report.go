// Package report renders the end-of-run summary of a download batch.
package report

import (
	"fmt"
	"io"

	"github.com/gkatanacio/bulkdl/download"
)

// Render writes the summary of stats to w: total bytes, elapsed seconds and
// the succeeded and failed entries, each block only when non-empty.
func Render(w io.Writer, stats *download.Stats) error {
	ew := &errWriter{w: w}

	ew.printf("\nDownload Summary\n")
	ew.printf("-----------------------------\n")
	if stats.RunID != "" {
		ew.printf("Run: %s\n", stats.RunID)
	}
	ew.printf("Total bytes downloaded: %d (%s)\n", stats.TotalBytes, FormatBytes(stats.TotalBytes))
	ew.printf("Time taken: %.2f seconds\n", stats.Elapsed.Seconds())

	if len(stats.Succeeded) > 0 {
		ew.printf("\nSuccessfully downloaded files:\n")
		for _, name := range stats.Succeeded {
			ew.printf(" - %s\n", name)
		}
	}

	if len(stats.Failed) > 0 {
		ew.printf("\nFailed downloads:\n")
		for _, url := range stats.Failed {
			ew.printf(" - %s\n", url)
		}
	}

	return ew.err
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// errWriter keeps the first write error and skips every write after it.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
