package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-scheduler-api/internal/dto"
	"github.com/noah-isme/swim-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/swim-scheduler-api/pkg/errors"
	"github.com/noah-isme/swim-scheduler-api/pkg/export"
)

// Supported export encodings.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type wizardReader interface {
	Get(ctx context.Context, creds models.BackendCredentials, id string) (*dto.WizardResponse, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered preview ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a wizard's generated sessions as CSV or PDF.
type ExportService struct {
	wizards   wizardReader
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(wizards wizardReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{wizards: wizards, csv: csv, pdf: pdf, validator: validator.New(), logger: logger}
}

// Export renders the preview of a wizard that already generated sessions.
func (s *ExportService) Export(ctx context.Context, creds models.BackendCredentials, id string, query dto.ExportQuery) (*ExportResult, error) {
	query.Format = strings.ToLower(strings.TrimSpace(query.Format))
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	format := query.Format
	if format == "" {
		format = ExportFormatCSV
	}
	view, err := s.wizards.Get(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if view.Wizard.Step == models.WizardStepConfigure {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export is available once sessions have been generated")
	}

	dataset := previewDataset(view)
	var (
		body        []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		body, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		s.logger.Error("failed to render preview export", zap.String("wizard_id", id), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("schedule-preview-%s.%s", shortID(id), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

var previewHeaders = []string{"Session", "Class", "Date", "Slot", "Time", "Instructor", "Pool", "Selection", "Warnings"}

func previewDataset(view *dto.WizardResponse) export.Dataset {
	duplicates := make(map[string]bool, len(view.Duplicates))
	for _, key := range view.Duplicates {
		duplicates[key] = true
	}

	dataset := export.Dataset{
		Title:     "Schedule preview",
		Headers:   previewHeaders,
		Highlight: map[int]bool{},
		Notes: []string{
			fmt.Sprintf("Wizard %s, step %s", view.Wizard.ID, view.StepName),
			fmt.Sprintf("Generated %s", view.Wizard.UpdatedAt.Format("2006-01-02 15:04 MST")),
		},
	}
	for _, plan := range view.Wizard.Classes {
		for i, session := range plan.Sessions {
			key := models.SessionKey{ClassID: plan.Classroom.ID, Index: i}.String()
			poolTitle, mode := "", "none"
			var warnings []string
			if pool, ok := session.SelectedPool(); ok {
				poolTitle = pool.Title
				mode = selectionManual
				if session.Selection.Auto {
					mode = selectionAuto
				}
				warnings = poolWarnings(pool)
			} else {
				warnings = append(warnings, "no pool")
			}
			if duplicates[key] {
				warnings = append(warnings, "duplicate")
			}
			if len(warnings) > 0 {
				dataset.Highlight[len(dataset.Rows)] = true
			}
			dataset.Rows = append(dataset.Rows, []string{
				key,
				plan.Classroom.DisplayName(),
				session.Date,
				session.Slot.Title,
				slotWindow(session.Slot),
				session.Instructor.Username,
				poolTitle,
				mode,
				strings.Join(warnings, "; "),
			})
		}
	}
	return dataset
}

func poolWarnings(pool models.PoolCandidate) []string {
	var warnings []string
	if pool.HasAgeWarning {
		warnings = append(warnings, "age")
	}
	if pool.HasInstructorConflict {
		warnings = append(warnings, "instructor")
	}
	if pool.HasCapacityWarning {
		warnings = append(warnings, "capacity")
	}
	return warnings
}

func slotWindow(slot models.Slot) string {
	if slot.ID == "" || slot.Title == models.UnresolvedTitle {
		return ""
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", slot.StartTime, slot.StartMinute, slot.EndTime, slot.EndMinute)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
