// Package download fetches files over HTTP into a local directory, resuming
// partial files and verifying size and MD5 before a file counts as done.
package download

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the service layer that runs a batch of downloads.
type Service struct {
	opts    Options
	fetcher *Fetcher
}

func NewService(opts Options) *Service {
	opts = opts.withDefaults()

	return &Service{
		opts:    opts,
		fetcher: NewFetcher(opts),
	}
}

// Run downloads the targets one after another, in order. A failing target is
// logged and recorded, and the batch moves on to the next one. Once ctx is
// done, the remaining targets are recorded as failed without any request.
//
// Every target ends up in exactly one of Stats.Succeeded (by local file name)
// or Stats.Failed (by URL).
func (s *Service) Run(ctx context.Context, targets []Target) *Stats {
	stats := &Stats{RunID: uuid.NewString()}
	start := time.Now()

	for _, target := range targets {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Target: target, Err: fmt.Errorf("%w: %w", ErrRunInterrupted, err)}
			stats.Abandoned++
		} else {
			res = s.fetcher.Fetch(ctx, target)
		}

		if !res.OK() {
			s.opts.Logger.Printf("run %s: failed to download %s: %v", stats.RunID, target.URL(), res.Err)
		}
		stats.record(res)
	}

	stats.Elapsed = time.Since(start)

	return stats
}
