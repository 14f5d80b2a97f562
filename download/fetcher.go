package download

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Fetcher downloads a single target into the destination directory,
// resuming from any partial file a previous run left behind.
type Fetcher struct {
	opts       Options
	httpClient *http.Client
}

func NewFetcher(opts Options) *Fetcher {
	opts = opts.withDefaults()

	dialer := &net.Dialer{Timeout: opts.ReadTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ReadTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		DisableCompression:    true, // sizes are compared against Content-Length
	}

	return &Fetcher{
		opts: opts,
		httpClient: &http.Client{
			Transport: transport,
			Jar:       opts.Jar,
		},
	}
}

// Fetch downloads target and reports the outcome. It never panics or returns
// a Go error: every failure is carried in Result.Err.
func (f *Fetcher) Fetch(ctx context.Context, target Target) Result {
	name, err := LocalName(target.URL())
	if err != nil {
		return Result{Target: target, Err: err}
	}

	res := Result{
		Target: target,
		Name:   name,
		Path:   filepath.Join(f.opts.DestDir, name),
	}
	res.Bytes, res.Err = f.fetch(ctx, target, res.Path)

	return res
}

func (f *Fetcher) fetch(ctx context.Context, target Target, localPath string) (int64, error) {
	url := target.URL()

	localSize, exists, err := fileSize(localPath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}

	if exists {
		remoteSize, err := f.remoteSize(ctx, url)
		if err != nil {
			return 0, err
		}

		if localSize == remoteSize {
			fmt.Fprintf(f.opts.Output, "File already downloaded completely: %s\n", filepath.Base(localPath))
			if err := VerifyMD5(localPath, target.ExpectedMD5()); err != nil {
				return 0, err
			}
			return localSize, nil
		}

		fmt.Fprintf(f.opts.Output, "File not downloaded completely: %s, resuming at byte %d of %d...\n",
			filepath.Base(localPath), localSize, remoteSize)
	} else {
		fmt.Fprintf(f.opts.Output, "Downloading %s...\n", url)
	}

	expected, err := f.transfer(ctx, url, localPath, localSize)
	if err != nil {
		return 0, err
	}

	diskSize, _, err := fileSize(localPath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if diskSize != expected {
		return 0, &SizeMismatchError{Stage: "disk", Expected: expected, Actual: diskSize}
	}

	if err := VerifyMD5(localPath, target.ExpectedMD5()); err != nil {
		return 0, err
	}

	fmt.Fprintf(f.opts.Output, "Downloaded %s (%d bytes).\n", filepath.Base(localPath), diskSize)

	return diskSize, nil
}

// transfer streams the body of url into localPath, appending after offset
// when the server honours the range request. It returns the expected total
// size of the file once the transfer is complete.
func (f *Fetcher) transfer(ctx context.Context, url, localPath string, offset int64) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := f.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return 0, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode}
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if offset > 0 {
		if resp.StatusCode == http.StatusPartialContent {
			contentRange := resp.Header.Get("Content-Range")
			if start, ok := contentRangeStart(contentRange); !ok || start != offset {
				return 0, fmt.Errorf("%w: requested bytes=%d-, got %q", ErrRangeMismatch, offset, contentRange)
			}
			flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		} else {
			f.opts.Logger.Printf("server ignored range request for %s, restarting from byte 0", url)
			offset = 0
		}
	}

	contentLength := resp.ContentLength
	if contentLength < 0 {
		contentLength = 0
	}
	expected := offset + contentLength

	file, err := os.OpenFile(localPath, flag, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}

	sink := &chunkSink{
		dst:      file,
		written:  offset,
		total:    expected,
		progress: f.opts.Progress,
	}
	body := newIdleTimeoutReader(resp.Body, f.opts.ReadTimeout, cancel)

	_, copyErr := io.CopyBuffer(sink, body, make([]byte, f.opts.ChunkSize))
	body.stop()
	closeErr := file.Close()

	if f.opts.Progress != nil {
		f.opts.Progress.Done()
	}

	if copyErr != nil {
		if body.expired() {
			return 0, fmt.Errorf("read %s: no data received for %s", url, f.opts.ReadTimeout)
		}
		return 0, fmt.Errorf("read %s: %w", url, copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close %s: %w", localPath, closeErr)
	}

	if sink.written != expected {
		f.opts.Logger.Printf("not downloaded completely: %s", filepath.Base(localPath))
		return 0, &SizeMismatchError{Stage: "stream", Expected: expected, Actual: sink.written}
	}

	return expected, nil
}

// remoteSize learns the total size of url with a HEAD request. A missing
// Content-Length counts as 0.
func (f *Fetcher) remoteSize(ctx context.Context, url string) (int64, error) {
	req, err := f.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Method: http.MethodHead, URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength < 0 {
		return 0, nil
	}
	return resp.ContentLength, nil
}

// contentRangeStart returns the first byte position of a
// "bytes first-last/total" Content-Range value.
func contentRangeStart(header string) (int64, bool) {
	rest, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return 0, false
	}
	return start, true
}

func (f *Fetcher) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	return req, nil
}

// idleTimeoutReader cancels the request when no read completes within
// timeout. The deadline restarts after every read.
type idleTimeoutReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleTimeoutReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutReader {
	tr := &idleTimeoutReader{r: r, timeout: timeout}
	if timeout > 0 {
		tr.timer = time.AfterFunc(timeout, func() {
			tr.fired.Store(true)
			cancel()
		})
	}
	return tr
}

func (tr *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if tr.timer != nil && n > 0 {
		tr.timer.Reset(tr.timeout)
	}
	return n, err
}

func (tr *idleTimeoutReader) stop() {
	if tr.timer != nil {
		tr.timer.Stop()
	}
}

func (tr *idleTimeoutReader) expired() bool {
	return tr.fired.Load()
}
