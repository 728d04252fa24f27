package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/pkg/export"
	"github.com/gme-scheduler/core/pkg/storage"
)

// ReportFormat selects the rendered output of a run export.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type runReportSource interface {
	RunReport(ctx context.Context, runID string) (*models.RunReport, error)
	ListAssignments(ctx context.Context, scheduleRunID string) ([]models.Assignment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders a completed schedule run's report and committed
// assignment roster to CSV or PDF and persists the rendered file behind a
// signed, time-limited download token.
type ExportService struct {
	runs    runReportSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(runs runReportSource, fs fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		runs:    runs,
		storage: fs,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// GenerateRoster renders the committed assignment roster for a schedule
// run and stores it in the requested format.
func (s *ExportService) GenerateRoster(ctx context.Context, runID string, format ReportFormat) (*ExportResult, error) {
	assignments, err := s.runs.ListAssignments(ctx, runID)
	if err != nil {
		return nil, err
	}
	dataRows := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		dataRows = append(dataRows, map[string]string{
			"Date":      a.Date.Format("2006-01-02"),
			"Period":    string(a.Period),
			"Person ID": a.PersonID,
			"Activity":  a.ActivityCode,
			"Source":    string(a.Source),
			"Role":      string(a.Role),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Period", "Person ID", "Activity", "Source", "Role"},
		Rows:    dataRows,
	}
	return s.render(ctx, runID, "roster", fmt.Sprintf("Schedule Roster %s", runID), dataset, format)
}

// GenerateRunReport renders a schedule run's validation/solver summary.
func (s *ExportService) GenerateRunReport(ctx context.Context, runID string, format ReportFormat) (*ExportResult, error) {
	report, err := s.runs.RunReport(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows := []map[string]string{
		{"Metric": "Status", "Value": string(report.Status)},
		{"Metric": "Total Assigned", "Value": fmt.Sprintf("%d", report.TotalAssigned)},
		{"Metric": "Total Slots", "Value": fmt.Sprintf("%d", report.TotalSlots)},
		{"Metric": "Solver Backend", "Value": string(report.Solver.Backend)},
		{"Metric": "Solver Terminal State", "Value": report.Solver.TerminalState},
		{"Metric": "Solver Runtime (ms)", "Value": fmt.Sprintf("%d", report.Solver.RuntimeMillis)},
		{"Metric": "Resilience Pre", "Value": string(report.Resilience.Pre)},
		{"Metric": "Resilience Post", "Value": string(report.Resilience.Post)},
		{"Metric": "Violations", "Value": fmt.Sprintf("%d", len(report.Validation.HardViolations)+len(report.Validation.SoftViolations))},
	}
	dataset := export.Dataset{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}
	return s.render(ctx, runID, "run_report", fmt.Sprintf("Run Report %s", runID), dataset, format)
}

func (s *ExportService) render(ctx context.Context, runID, kind, title string, dataset export.Dataset, format ReportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(runID, kind, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(runID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/export/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (runID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(runID, kind string, format ReportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", kind, sanitizeFilename(runID), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
