package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sriaudit/comprobantes-api/internal/models"
)

// fakeFetcher fails the access keys listed in failKeys and succeeds otherwise
type fakeFetcher struct {
	mu       sync.Mutex
	failKeys map[string]error
	seen     []string
}

func (f *fakeFetcher) FetchItem(_ context.Context, rec models.SeedRecord, formatos []string) ItemResult {
	f.mu.Lock()
	f.seen = append(f.seen, rec.ClaveAcceso)
	f.mu.Unlock()

	res := ItemResult{ClaveAcceso: rec.ClaveAcceso}
	if err, ok := f.failKeys[rec.ClaveAcceso]; ok {
		res.Err = err
		return res
	}
	for _, fo := range formatos {
		switch fo {
		case models.FormatoXML:
			res.XMLSaved = true
		case models.FormatoPDF:
			res.PDFSaved = true
		}
	}
	return res
}

func seedRecords(n int) []models.SeedRecord {
	records := make([]models.SeedRecord, n)
	for i := range records {
		records[i] = models.SeedRecord{ClaveAcceso: fmt.Sprintf("clave-%02d", i+1)}
	}
	return records
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger.WithField("component", "test")
}

func TestRunIsolatesItemFailures(t *testing.T) {
	fake := &fakeFetcher{failKeys: map[string]error{
		"clave-05": errors.New("portal timeout"),
	}}
	b := &Batch{Fetcher: fake, Logger: testLogger()}

	summary := b.Run(context.Background(), seedRecords(10), []string{models.FormatoXML})

	assert.Equal(t, 9, summary.NXML)
	assert.Equal(t, 0, summary.NPDF)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "clave-05", summary.Failures[0].ClaveAcceso)
	assert.Equal(t, "portal timeout", summary.Failures[0].Motivo)

	// The failure did not stop the walk
	assert.Len(t, fake.seen, 10)
}

func TestRunCountsBothFormats(t *testing.T) {
	fake := &fakeFetcher{}
	b := &Batch{Fetcher: fake, Logger: testLogger()}

	summary := b.Run(context.Background(), seedRecords(3), []string{models.FormatoXML, models.FormatoPDF})

	assert.Equal(t, 3, summary.NXML)
	assert.Equal(t, 3, summary.NPDF)
	assert.Empty(t, summary.Failures)
}

func TestRunMissingRequestedFormatIsFailure(t *testing.T) {
	// The fake saves nothing when no format matches
	fake := &fakeFetcher{}
	b := &Batch{Fetcher: fake, Logger: testLogger()}

	summary := b.Run(context.Background(), []models.SeedRecord{{ClaveAcceso: "clave-01"}}, []string{models.FormatoPDF, models.FormatoXML})

	assert.Equal(t, 1, summary.NPDF)
	assert.Equal(t, 1, summary.NXML)
	assert.Empty(t, summary.Failures)

	never := &neverSaves{}
	b = &Batch{Fetcher: never, Logger: testLogger()}
	summary = b.Run(context.Background(), []models.SeedRecord{{ClaveAcceso: "clave-01"}}, []string{models.FormatoXML})

	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "xml no descargado", summary.Failures[0].Motivo)
}

type neverSaves struct{}

func (neverSaves) FetchItem(_ context.Context, rec models.SeedRecord, _ []string) ItemResult {
	return ItemResult{ClaveAcceso: rec.ClaveAcceso}
}

func TestRunCanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeFetcher{}
	b := &Batch{Fetcher: fake, Logger: testLogger()}

	summary := b.Run(ctx, seedRecords(5), []string{models.FormatoXML})

	assert.Equal(t, 0, summary.NXML)
	assert.Empty(t, fake.seen)
}

func TestRunPoolMergesWorkerSummaries(t *testing.T) {
	fake := &fakeFetcher{failKeys: map[string]error{
		"clave-03": errors.New("boom"),
		"clave-07": errors.New("boom"),
	}}
	b := &Batch{Fetcher: fake, Workers: 3, Logger: testLogger()}

	summary := b.Run(context.Background(), seedRecords(12), []string{models.FormatoXML})

	assert.Equal(t, 10, summary.NXML)
	assert.Len(t, summary.Failures, 2)
	assert.Len(t, fake.seen, 12)
}

func TestRunPoolStopsFeedingWhenPacingFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// One token up front, the next would take an hour: every later limiter
	// wait fails immediately against the deadline. The feed must stop with
	// the workers instead of blocking until the deadline passes.
	fake := &fakeFetcher{}
	b := &Batch{
		Fetcher: fake,
		Workers: 2,
		Limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
		Logger:  testLogger(),
	}

	start := time.Now()
	summary := b.Run(ctx, seedRecords(10), []string{models.FormatoXML})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.LessOrEqual(t, summary.NXML, 1)
}

func TestRunClampsWorkerCount(t *testing.T) {
	fake := &fakeFetcher{}
	b := &Batch{Fetcher: fake, Workers: 50, Logger: testLogger()}

	summary := b.Run(context.Background(), seedRecords(8), []string{models.FormatoXML})
	assert.Equal(t, 8, summary.NXML)
}
