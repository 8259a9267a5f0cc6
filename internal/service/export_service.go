package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/dto"
	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/pkg/export"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type rankingSource interface {
	CohortRanking(ctx context.Context, req dto.CohortRankingRequest) (*models.CohortRanking, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportService renders cohort rankings as downloadable tables.
type ExportService struct {
	rankings  rankingSource
	renderers map[string]tableRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers use the
// package exporters.
func NewExportService(rankings rankingSource, csv, pdf tableRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		rankings:  rankings,
		renderers: map[string]tableRenderer{FormatCSV: csv, FormatPDF: pdf},
		logger:    logger,
	}
}

// ExportCohort ranks the cohort and renders it in the requested format
// (csv when empty).
func (s *ExportService) ExportCohort(ctx context.Context, req dto.ExportRankingRequest) (*dto.ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	ranking, err := s.rankings.CohortRanking(ctx, req.CohortRankingRequest)
	if err != nil {
		return nil, err
	}

	content, err := renderer.Render(rankingDataset(ranking))
	if err != nil {
		s.logger.Error("failed to render ranking export", zap.String("exam_id", ranking.ExamID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportFile{
		Filename:    exportFilename(ranking, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

// rankingDataset lays out one row per student. Subject columns follow the
// order of the first breakdown; counted subjects are marked with '*'.
func rankingDataset(ranking *models.CohortRanking) export.Dataset {
	var (
		subjectIDs []string
		names      = map[string]string{}
	)
	for _, result := range ranking.Results {
		for _, subject := range result.Subjects {
			if _, ok := names[subject.SubjectID]; ok {
				continue
			}
			name := subject.SubjectName
			if name == "" {
				name = subject.SubjectID
			}
			names[subject.SubjectID] = name
			subjectIDs = append(subjectIDs, subject.SubjectID)
		}
	}

	headers := []string{"Rank", "Student"}
	for _, id := range subjectIDs {
		headers = append(headers, names[id])
	}
	headers = append(headers, "Total Marks", "Total Points", "Mean Marks", "Mean Points", "Grade")

	rows := make([][]string, 0, len(ranking.Results))
	for _, result := range ranking.Results {
		bySubject := make(map[string]models.SubjectResult, len(result.Subjects))
		for _, subject := range result.Subjects {
			bySubject[subject.SubjectID] = subject
		}
		row := []string{strconv.Itoa(result.Rank), result.StudentID}
		for _, id := range subjectIDs {
			row = append(row, subjectCell(bySubject[id]))
		}
		row = append(row,
			formatFloat(result.TotalMarks),
			strconv.Itoa(result.TotalPoints),
			formatFloat(result.MeanMarks),
			formatFloat(result.MeanPoints),
			result.Grade,
		)
		rows = append(rows, row)
	}

	subtitle := []string{"Class " + orAll(ranking.ClassID), "Stream " + orAll(ranking.StreamID), "ranked by " + ranking.RankBy}
	return export.Dataset{
		Title:    fmt.Sprintf("Exam %s ranking", ranking.ExamID),
		Subtitle: strings.Join(subtitle, " / "),
		Headers:  headers,
		Rows:     rows,
	}
}

func subjectCell(subject models.SubjectResult) string {
	if !subject.Sat {
		return ""
	}
	cell := fmt.Sprintf("%s %s", formatFloat(subject.Score), subject.Grade)
	if subject.Counted {
		cell += "*"
	}
	return cell
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func exportFilename(ranking *models.CohortRanking, ext string) string {
	parts := []string{"ranking", ranking.ExamID, orAll(ranking.ClassID), orAll(ranking.StreamID)}
	for i, part := range parts {
		parts[i] = sanitizeFilename(part)
	}
	return strings.Join(parts, "_") + "." + ext
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-", "..", ".", "_", "-")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}
