package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sriaudit/comprobantes-api/internal/models"
)

// Pool sizing bounds. One worker means the plain sequential walk.
const (
	defaultWorkers = 1
	maxWorkers     = 5
)

// Batch drives the per-item fan-out over the seed records. Failure on one
// item never aborts the batch: it is recorded in the summary and the walk
// continues.
type Batch struct {
	Fetcher ItemFetcher
	// Limiter paces item starts; nil disables pacing
	Limiter *rate.Limiter
	// BlockEvery/BlockPause insert a longer pause after every N items to
	// avoid portal-side throttling (sequential mode only)
	BlockEvery int
	BlockPause time.Duration
	Workers    int
	// NewWorkerCtx supplies an independent page context per pool worker. The
	// contexts share the authenticated browser session, which is read-only
	// once established. Chrome's download machinery is browser-global, so the
	// browser package serializes the trigger-to-completion window; workers
	// overlap on navigation and search only. nil means workers run on the
	// batch context.
	NewWorkerCtx func() (context.Context, context.CancelFunc)
	Logger       *logrus.Entry
}

// Run fetches the requested formats for every record and returns the merged
// summary. Cancelling ctx stops dequeuing new items; items already started
// finish or time out on their own.
func (b *Batch) Run(ctx context.Context, records []models.SeedRecord, formatos []string) models.FetchSummary {
	workers := b.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers == 1 {
		return b.runSequential(ctx, records, formatos)
	}
	return b.runPool(ctx, records, formatos, workers)
}

func (b *Batch) runSequential(ctx context.Context, records []models.SeedRecord, formatos []string) models.FetchSummary {
	var summary models.FetchSummary

	for i, rec := range records {
		if ctx.Err() != nil {
			b.Logger.WithField("remaining", len(records)-i).Warn("Batch canceled, skipping remaining items")
			break
		}
		if b.Limiter != nil {
			if err := b.Limiter.Wait(ctx); err != nil {
				break
			}
		}

		b.accumulate(&summary, b.Fetcher.FetchItem(ctx, rec, formatos), formatos)

		if b.BlockEvery > 0 && (i+1)%b.BlockEvery == 0 && i+1 < len(records) {
			b.Logger.WithField("items", i+1).Debug("Pausing between item blocks")
			select {
			case <-ctx.Done():
			case <-time.After(b.BlockPause):
			}
		}
	}

	return summary
}

// runPool fans the records out over a fixed-size pool of page workers. Each
// worker accumulates its own counts; summaries are merged after the pool
// drains, so completion order carries no meaning.
func (b *Batch) runPool(ctx context.Context, records []models.SeedRecord, formatos []string, workers int) models.FetchSummary {
	jobs := make(chan models.SeedRecord)
	results := make(chan models.FetchSummary, workers)

	// A worker whose limiter wait fails stops the feed too, otherwise the
	// feed loop would block on a channel nobody reads until the deadline.
	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			workerCtx := ctx
			if b.NewWorkerCtx != nil {
				var cancel context.CancelFunc
				workerCtx, cancel = b.NewWorkerCtx()
				defer cancel()
			}

			var local models.FetchSummary
			for rec := range jobs {
				if b.Limiter != nil {
					if err := b.Limiter.Wait(ctx); err != nil {
						stopFeed()
						break
					}
				}
				b.accumulate(&local, b.Fetcher.FetchItem(workerCtx, rec, formatos), formatos)
			}
			results <- local
		}(w)
	}

feed:
	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-feedCtx.Done():
			break feed
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	var summary models.FetchSummary
	for local := range results {
		summary.Merge(local)
	}
	return summary
}

func (b *Batch) accumulate(summary *models.FetchSummary, res ItemResult, formatos []string) {
	if res.XMLSaved {
		summary.NXML++
	}
	if res.PDFSaved {
		summary.NPDF++
	}

	if motivo := failureMotivo(res, formatos); motivo != "" {
		summary.Failures = append(summary.Failures, models.ItemFailure{
			ClaveAcceso: res.ClaveAcceso,
			Motivo:      motivo,
		})
		b.Logger.WithFields(logrus.Fields{
			"clave":  res.ClaveAcceso,
			"motivo": motivo,
		}).Warn("Item fetch failed, continuing")
	}
}

// failureMotivo decides whether an item counts as failed: an explicit error,
// or any requested format that did not land on disk.
func failureMotivo(res ItemResult, formatos []string) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	for _, f := range formatos {
		if f == models.FormatoXML && !res.XMLSaved {
			return "xml no descargado"
		}
		if f == models.FormatoPDF && !res.PDFSaved {
			return "pdf no descargado"
		}
	}
	return ""
}
