package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/dto"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type gradingService interface {
	CohortRanking(ctx context.Context, req dto.CohortRankingRequest) (*models.CohortRanking, error)
	StudentReport(ctx context.Context, req dto.StudentReportRequest) (*models.StudentReport, error)
	StudentTrend(ctx context.Context, studentID string) (*models.TrendSeries, error)
	InvalidateExam(ctx context.Context, examID string) (*dto.InvalidateResponse, error)
}

type rankingExporter interface {
	ExportCohort(ctx context.Context, req dto.ExportRankingRequest) (*dto.ExportFile, error)
}

type precomputeScheduler interface {
	Enqueue(ctx context.Context, req dto.PrecomputeRequest) (*dto.PrecomputeJob, error)
	Status(jobID string) (*dto.PrecomputeJob, error)
}

// GradingHandler exposes rankings, report cards and progress trends.
type GradingHandler struct {
	grading    gradingService
	exports    rankingExporter
	precompute precomputeScheduler
}

// NewGradingHandler builds a new handler.
func NewGradingHandler(grading gradingService, exports rankingExporter, precompute precomputeScheduler) *GradingHandler {
	return &GradingHandler{grading: grading, exports: exports, precompute: precompute}
}

// Register mounts the grading routes on rg.
func (h *GradingHandler) Register(rg *gin.RouterGroup) {
	exams := rg.Group("/exams/:examId")
	exams.GET("/rankings", h.Rankings)
	exams.GET("/rankings/export", h.Export)
	exams.POST("/rankings/precompute", h.Precompute)
	exams.GET("/rankings/precompute/:jobId", h.PrecomputeStatus)
	exams.DELETE("/rankings/cache", h.Invalidate)
	exams.GET("/students/:studentId/report", h.Report)
	rg.GET("/students/:studentId/trend", h.Trend)
}

// Rankings godoc
// @Summary Rank an exam cohort
// @Description Dense ranking of every student in the cohort with per-subject breakdown. Paginated when pageSize is set.
// @Tags Rankings
// @Produce json
// @Param examId path string true "Exam ID"
// @Param classId query string false "Class filter"
// @Param streamId query string false "Stream filter"
// @Param rankBy query string false "mean_points (default), total_points or total_marks"
// @Param refresh query bool false "Bypass the cache"
// @Param page query int false "Page number (1-based)"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /exams/{examId}/rankings [get]
func (h *GradingHandler) Rankings(c *gin.Context) {
	page, pageSize, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	ranking, err := h.grading.CohortRanking(c.Request.Context(), rankingRequest(c, refresh))
	if err != nil {
		response.Error(c, err)
		return
	}
	if pageSize == 0 {
		response.JSON(c, http.StatusOK, ranking, nil)
		return
	}

	paged := *ranking
	lo, hi := pageBounds(len(ranking.Results), page, pageSize)
	paged.Results = ranking.Results[lo:hi]
	response.JSON(c, http.StatusOK, paged, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(ranking.Results)})
}

// Export godoc
// @Summary Export an exam cohort ranking
// @Tags Rankings
// @Produce text/csv
// @Produce application/pdf
// @Param examId path string true "Exam ID"
// @Param format query string false "csv (default) or pdf"
// @Param classId query string false "Class filter"
// @Param streamId query string false "Stream filter"
// @Param rankBy query string false "Ranking basis"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exams/{examId}/rankings/export [get]
func (h *GradingHandler) Export(c *gin.Context) {
	file, err := h.exports.ExportCohort(c.Request.Context(), dto.ExportRankingRequest{
		CohortRankingRequest: rankingRequest(c, false),
		Format:               c.Query("format"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// Precompute godoc
// @Summary Warm the ranking cache in the background
// @Tags Rankings
// @Accept json
// @Produce json
// @Param examId path string true "Exam ID"
// @Param payload body dto.PrecomputeRequest false "Cohorts to precompute (whole exam when omitted)"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /exams/{examId}/rankings/precompute [post]
func (h *GradingHandler) Precompute(c *gin.Context) {
	var req dto.PrecomputeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
			return
		}
	}
	req.ExamID = c.Param("examId")

	job, err := h.precompute.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// PrecomputeStatus godoc
// @Summary Get a precompute job
// @Tags Rankings
// @Produce json
// @Param examId path string true "Exam ID"
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{examId}/rankings/precompute/{jobId} [get]
func (h *GradingHandler) PrecomputeStatus(c *gin.Context) {
	job, err := h.precompute.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if job.ExamID != c.Param("examId") {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "precompute job not found"))
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Invalidate godoc
// @Summary Drop cached rankings for an exam
// @Tags Rankings
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{examId}/rankings/cache [delete]
func (h *GradingHandler) Invalidate(c *gin.Context) {
	result, err := h.grading.InvalidateExam(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Report godoc
// @Summary Get a student's report for an exam
// @Tags Reports
// @Produce json
// @Param examId path string true "Exam ID"
// @Param studentId path string true "Student ID"
// @Param classId query string false "Class the student is ranked within"
// @Param streamId query string false "Stream the student is ranked within"
// @Param rankBy query string false "Ranking basis"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /exams/{examId}/students/{studentId}/report [get]
func (h *GradingHandler) Report(c *gin.Context) {
	report, err := h.grading.StudentReport(c.Request.Context(), dto.StudentReportRequest{
		ExamID:    c.Param("examId"),
		StudentID: c.Param("studentId"),
		ClassID:   c.Query("classId"),
		StreamID:  c.Query("streamId"),
		RankBy:    c.Query("rankBy"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Trend godoc
// @Summary Get a student's progress trend
// @Tags Reports
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/trend [get]
func (h *GradingHandler) Trend(c *gin.Context) {
	series, err := h.grading.StudentTrend(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil, map[string]interface{}{
		"labels": series.Labels(),
		"values": series.Values(),
	})
}

func rankingRequest(c *gin.Context, refresh bool) dto.CohortRankingRequest {
	return dto.CohortRankingRequest{
		ExamID:   c.Param("examId"),
		ClassID:  c.Query("classId"),
		StreamID: c.Query("streamId"),
		RankBy:   c.Query("rankBy"),
		Refresh:  refresh,
	}
}

// pageBounds returns the slice bounds of a 1-based page; pages past the end are empty.
func pageBounds(total, page, pageSize int) (int, int) {
	pages := (total + pageSize - 1) / pageSize
	if page > pages {
		return total, total
	}
	lo := (page - 1) * pageSize
	hi := lo + pageSize
	if hi > total {
		hi = total
	}
	return lo, hi
}

// pageParams returns (0, 0) when pagination was not requested.
func pageParams(c *gin.Context) (int, int, error) {
	rawSize := c.Query("pageSize")
	if rawSize == "" {
		return 0, 0, nil
	}
	pageSize, err := strconv.Atoi(rawSize)
	if err != nil || pageSize <= 0 || pageSize > 500 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "pageSize must be between 1 and 500")
	}
	page := 1
	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "page must be a positive integer")
		}
	}
	return page, pageSize, nil
}
