package download

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

const (
	DefaultUserAgent   = "BulkDownloader"
	DefaultReadTimeout = 30 * time.Second
	DefaultChunkSize   = 8192
)

// Options represents the configuration for the download service.
type Options struct {
	DestDir     string
	UserAgent   string
	ReadTimeout time.Duration
	ChunkSize   int

	// Jar carries the session credential attached to every request.
	Jar http.CookieJar

	// Progress receives a callback after every chunk written. Nil disables it.
	Progress Progress

	Logger *log.Logger
	Output io.Writer
}

func (o Options) withDefaults() Options {
	if o.DestDir == "" {
		o.DestDir = "."
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, "[bulkdl] ", log.LstdFlags)
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	return o
}

// Target is a remote file to download plus its optional expected MD5 digest.
type Target struct {
	url         string
	expectedMD5 string
}

// URL returns the remote location of the target.
func (t Target) URL() string { return t.url }

// ExpectedMD5 returns the hex digest the downloaded file must match, or "".
func (t Target) ExpectedMD5() string { return t.expectedMD5 }

// Result is the outcome of downloading one Target. Err is nil on success.
type Result struct {
	Target Target
	Name   string // local file name derived from the URL
	Path   string // Name joined with the destination directory
	Bytes  int64
	Err    error
}

// OK reports whether the target was downloaded and verified.
func (r Result) OK() bool { return r.Err == nil }

// Stats is the aggregate of a whole batch run.
type Stats struct {
	RunID      string
	TotalBytes int64
	Elapsed    time.Duration

	// Succeeded holds local file names, Failed holds the original URLs.
	Succeeded []string
	Failed    []string

	// Abandoned counts the failed targets that were never started because
	// the run was interrupted.
	Abandoned int
}

func (s *Stats) record(r Result) {
	if r.OK() {
		s.TotalBytes += r.Bytes
		s.Succeeded = append(s.Succeeded, r.Name)
		return
	}
	s.Failed = append(s.Failed, r.Target.URL())
}
