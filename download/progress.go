package download

import (
	"fmt"
	"io"
	"os"
)

// Progress receives the running byte count of the file being downloaded.
// Update is called after every chunk; it is not throttled.
type Progress interface {
	Update(written, total int64)
	Done()
}

// ConsoleProgress rewrites a single progress line on a terminal.
type ConsoleProgress struct {
	out io.Writer
}

func NewConsoleProgress(out io.Writer) *ConsoleProgress {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleProgress{out: out}
}

func (p *ConsoleProgress) Update(written, total int64) {
	fmt.Fprintf(p.out, "\rProgress: %d/%d bytes (%.2f%%)", written, total, Percent(written, total))
}

func (p *ConsoleProgress) Done() {
	fmt.Fprintln(p.out)
}

// chunkSink consumes sequential byte chunks into dst, keeping a running
// count that starts at the size of any prefix already on disk.
type chunkSink struct {
	dst      io.Writer
	written  int64
	total    int64
	progress Progress
}

func (s *chunkSink) Write(chunk []byte) (int, error) {
	n, err := s.dst.Write(chunk)
	s.written += int64(n)
	if s.progress != nil {
		s.progress.Update(s.written, s.total)
	}
	return n, err
}
