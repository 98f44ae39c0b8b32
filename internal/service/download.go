package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sriaudit/comprobantes-api/internal/browser"
	"github.com/sriaudit/comprobantes-api/internal/config"
	"github.com/sriaudit/comprobantes-api/internal/emitidos"
	"github.com/sriaudit/comprobantes-api/internal/fetcher"
	"github.com/sriaudit/comprobantes-api/internal/history"
	"github.com/sriaudit/comprobantes-api/internal/models"
	"github.com/sriaudit/comprobantes-api/internal/navigator"
	"github.com/sriaudit/comprobantes-api/internal/normalizer"
	"github.com/sriaudit/comprobantes-api/internal/report"
	"github.com/sriaudit/comprobantes-api/internal/seed"
	"github.com/sriaudit/comprobantes-api/internal/session"
	"github.com/sriaudit/comprobantes-api/internal/utils"
)

// ErrInvalidRequest marks a request rejected before touching the portal
var ErrInvalidRequest = errors.New("invalid request")

// ErrRunNotFound is returned when a run ID has no recorded destination
var ErrRunNotFound = errors.New("run not found")

// DownloadService runs the full retrieval pipeline for one request: session,
// filters, seed listing, per-item artifact fetch, normalization and report.
type DownloadService struct {
	cfg      *config.Config
	browser  *browser.Service
	sessions *session.Manager
	nav      *navigator.Navigator
	scraper  *emitidos.Scraper
	history  *history.Store
	logger   *logrus.Entry

	mu   sync.Mutex
	runs map[string]string
}

// NewDownloadService creates the pipeline orchestrator
func NewDownloadService(cfg *config.Config, browserSvc *browser.Service, sessions *session.Manager,
	nav *navigator.Navigator, scraper *emitidos.Scraper, hist *history.Store, logger *logrus.Logger) *DownloadService {
	return &DownloadService{
		cfg:      cfg,
		browser:  browserSvc,
		sessions: sessions,
		nav:      nav,
		scraper:  scraper,
		history:  hist,
		logger:   logger.WithField("component", "download"),
		runs:     map[string]string{},
	}
}

// Run executes one retrieval. Empty periods and degraded scrapes are valid
// summaries, not errors; an error return means the run produced nothing.
func (s *DownloadService) Run(ctx context.Context, req models.DownloadRequest) (*models.DownloadSummary, error) {
	start := time.Now()

	if err := req.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.RUC = utils.CleanRUC(req.RUC)
	if !utils.IsValidRUC(req.RUC) {
		return nil, fmt.Errorf("%w: RUC inválido", ErrInvalidRequest)
	}

	runID := uuid.New().String()
	log := s.logger.WithFields(logrus.Fields{
		"run":    runID,
		"ruc":    req.RUC,
		"origen": req.Origen,
		"anio":   req.Anio,
		"mes":    req.Mes,
	})
	log.Info("Starting retrieval run")

	destDir, xmlDir, pdfDir, err := s.prepareDirs(req)
	if err != nil {
		return nil, err
	}
	s.rememberRun(runID, destDir)

	summary := &models.DownloadSummary{
		ID:          runID,
		Origen:      req.Origen,
		DestinoPath: destDir,
	}

	tab, cancel := s.browser.NewTab()
	defer cancel()

	identity := session.Identity{RUC: req.RUC, Clave: req.Clave}
	if err := s.sessions.Establish(tab, identity, req.ForceLogin); err != nil {
		return s.failRun(summary, log, req, start, err)
	}

	if err := s.nav.OpenModule(tab, req.Origen); err != nil {
		return s.failRun(summary, log, req, start, err)
	}
	summary.Warnings = s.nav.ApplyFilters(tab, navigator.Filters{
		Anio:   req.Anio,
		Mes:    req.Mes,
		Tipo:   req.Tipo,
		Origen: req.Origen,
	})
	if err := s.nav.Consultar(tab); err != nil {
		return s.failRun(summary, log, req, start, err)
	}

	fallbackName := fmt.Sprintf("%s_%04d_%02d.txt", req.Origen, req.Anio, req.Mes)
	txtPath, err := seed.Download(tab, destDir, fallbackName, s.cfg.SRI.DownloadTimeout)
	if err != nil {
		if req.Origen == models.OrigenEmitidos {
			return s.runDegraded(tab, log, summary, destDir, req, start)
		}
		return s.failRun(summary, log, req, start, fmt.Errorf("seed listing unavailable: %w", err))
	}
	summary.TXTPath = txtPath

	records, err := seed.ParseFile(txtPath)
	if err != nil {
		if errors.Is(err, seed.ErrNoResults) {
			return s.finish(summary, log, req, start, models.EstadoSinDescargas, "TXT sin claves"), nil
		}
		return s.failRun(summary, log, req, start, err)
	}
	summary.NRegistros = len(records)
	log.WithField("records", len(records)).Info("Seed listing parsed")

	fetched := s.fetchItems(tab, records, req.Formatos, xmlDir, pdfDir, req.Origen)
	summary.NXML = fetched.NXML
	summary.NPDF = fetched.NPDF
	summary.Failures = fetched.Failures

	if fetched.NXML > 0 {
		if path, err := s.buildReport(xmlDir, destDir, req); err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("reporte no generado: %v", err))
			log.WithError(err).Warn("Report generation failed")
		} else {
			summary.ReportePath = path
		}
	}

	estado := models.EstadoOK
	if fetched.NXML == 0 && fetched.NPDF == 0 {
		estado = models.EstadoSinDescargas
	}
	return s.finish(summary, log, req, start, estado, ""), nil
}

// runDegraded recovers whatever the results table shows when the Emitidos
// module offers no report download. Filters may not have applied, so the run
// is flagged degraded rather than ok.
func (s *DownloadService) runDegraded(tab context.Context, log *logrus.Entry,
	summary *models.DownloadSummary, destDir string, req models.DownloadRequest, start time.Time) (*models.DownloadSummary, error) {

	log.Warn("Seed listing unavailable, scraping results table")

	records, err := s.scraper.Scrape(tab)
	if err != nil {
		return s.failRun(summary, log, req, start, fmt.Errorf("degraded scrape failed: %w", err))
	}

	summary.NRegistros = len(records)
	rep := report.Build(records)
	path := filepath.Join(destDir, fmt.Sprintf("reporte_%04d_%02d.xlsx", req.Anio, req.Mes))
	if err := rep.WriteXLSX(path); err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("reporte no generado: %v", err))
	} else {
		summary.ReportePath = path
	}

	return s.finish(summary, log, req, start, models.EstadoDegradado,
		"resultados recuperados de la tabla en pantalla"), nil
}

func (s *DownloadService) fetchItems(tab context.Context, records []models.SeedRecord,
	formatos []string, xmlDir, pdfDir, origen string) models.FetchSummary {

	item := fetcher.NewChromeFetcher(s.cfg.SRI, s.nav, origen, xmlDir, pdfDir, s.logger.Logger)

	batch := &fetcher.Batch{
		Fetcher:    item,
		Limiter:    rate.NewLimiter(rate.Every(s.cfg.SRI.ItemPause), 1),
		BlockEvery: s.cfg.SRI.BlockEvery,
		BlockPause: s.cfg.SRI.BlockPause,
		Workers:    s.cfg.SRI.FetchWorkers,
		Logger:     s.logger,
	}
	if s.cfg.SRI.FetchWorkers > 1 {
		batch.NewWorkerCtx = s.browser.NewTab
	}

	return batch.Run(tab, records, formatos)
}

// buildReport normalizes every XML on disk and writes the workbook
func (s *DownloadService) buildReport(xmlDir, destDir string, req models.DownloadRequest) (string, error) {
	entries, err := os.ReadDir(xmlDir)
	if err != nil {
		return "", err
	}

	var records []models.Comprobante
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(xmlDir, entry.Name()))
		if err != nil {
			records = append(records, models.Comprobante{Archivo: entry.Name(), Error: err.Error()})
			continue
		}
		records = append(records, normalizer.Normalize(data, entry.Name()))
	}

	path := filepath.Join(destDir, fmt.Sprintf("reporte_%04d_%02d.xlsx", req.Anio, req.Mes))
	if err := report.Build(records).WriteXLSX(path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *DownloadService) prepareDirs(req models.DownloadRequest) (destDir, xmlDir, pdfDir string, err error) {
	destDir = filepath.Join(s.cfg.Storage.DownloadDir, req.RUC,
		fmt.Sprintf("%04d", req.Anio), fmt.Sprintf("%02d", req.Mes))
	xmlDir = filepath.Join(destDir, "XML")
	pdfDir = filepath.Join(destDir, "PDF")

	for _, dir := range []string{destDir, xmlDir, pdfDir} {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return "", "", "", fmt.Errorf("failed to create download directory: %w", err)
		}
	}
	return destDir, xmlDir, pdfDir, nil
}

func (s *DownloadService) finish(summary *models.DownloadSummary, log *logrus.Entry,
	req models.DownloadRequest, start time.Time, estado, mensaje string) *models.DownloadSummary {

	summary.Estado = estado
	summary.Mensaje = mensaje
	summary.Duracion = time.Since(start).Round(time.Second).String()
	summary.FinalizadoEn = time.Now()

	s.history.Append(history.Entry{
		ID:         summary.ID,
		Timestamp:  summary.FinalizadoEn,
		RUC:        req.RUC,
		Origen:     req.Origen,
		Anio:       req.Anio,
		Mes:        req.Mes,
		Tipo:       req.Tipo,
		Estado:     summary.Estado,
		NXML:       summary.NXML,
		NPDF:       summary.NPDF,
		NRegistros: summary.NRegistros,
	})

	log.WithFields(logrus.Fields{
		"estado": summary.Estado,
		"n_xml":  summary.NXML,
		"n_pdf":  summary.NPDF,
	}).Info("Retrieval run finished")
	return summary
}

// failRun closes out a run that produced nothing: the summary carries
// estado error and lands in the history alongside successful runs, and the
// error still propagates so the caller can map it.
func (s *DownloadService) failRun(summary *models.DownloadSummary, log *logrus.Entry,
	req models.DownloadRequest, start time.Time, err error) (*models.DownloadSummary, error) {
	s.finish(summary, log, req, start, models.EstadoError, err.Error())
	return summary, err
}

func (s *DownloadService) rememberRun(id, destDir string) {
	s.mu.Lock()
	s.runs[id] = destDir
	s.mu.Unlock()
}

// DestinoFor returns the destination directory a run downloaded into
func (s *DownloadService) DestinoFor(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.runs[id]
	if !ok {
		return "", ErrRunNotFound
	}
	return dir, nil
}
