package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/pkg/export"
	"github.com/gme-scheduler/core/pkg/storage"
)

type runReportSourceStub struct{}

func (runReportSourceStub) RunReport(ctx context.Context, runID string) (*models.RunReport, error) {
	return &models.RunReport{
		RunID:         runID,
		Status:        models.RunStatusSuccess,
		TotalAssigned: 42,
		TotalSlots:    45,
		Solver: models.SolverStats{
			Backend:       models.AlgorithmCP,
			TerminalState: "optimal",
			RuntimeMillis: 1200,
		},
		Resilience: models.ResiliencePair{Pre: models.ResilienceGreen, Post: models.ResilienceYellow},
	}, nil
}

func (runReportSourceStub) ListAssignments(ctx context.Context, scheduleRunID string) ([]models.Assignment, error) {
	return []models.Assignment{
		{PersonID: "res-1", Date: time.Now(), Period: models.PeriodAM, ActivityCode: "CLINIC", Source: models.SourceSolver, Role: models.AssignmentRolePrimary},
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(runReportSourceStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateRosterCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	result, err := svc.GenerateRoster(context.Background(), "run-1", ReportFormatCSV)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	path := store.Path(result.RelativePath)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateRunReportPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	result, err := svc.GenerateRunReport(context.Background(), "run-2", ReportFormatPDF)
	require.NoError(t, err)
	require.Equal(t, ReportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
