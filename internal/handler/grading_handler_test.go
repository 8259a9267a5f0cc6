package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/dto"
	"github.com/noah-isme/sma-grading-api/internal/models"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type gradingServiceMock struct {
	ranking    *models.CohortRanking
	report     *models.StudentReport
	trend      *models.TrendSeries
	err        error
	lastRank   dto.CohortRankingRequest
	lastReport dto.StudentReportRequest
	invalidate string
}

func (m *gradingServiceMock) CohortRanking(ctx context.Context, req dto.CohortRankingRequest) (*models.CohortRanking, error) {
	m.lastRank = req
	return m.ranking, m.err
}

func (m *gradingServiceMock) StudentReport(ctx context.Context, req dto.StudentReportRequest) (*models.StudentReport, error) {
	m.lastReport = req
	return m.report, m.err
}

func (m *gradingServiceMock) StudentTrend(ctx context.Context, studentID string) (*models.TrendSeries, error) {
	return m.trend, m.err
}

func (m *gradingServiceMock) InvalidateExam(ctx context.Context, examID string) (*dto.InvalidateResponse, error) {
	m.invalidate = examID
	return &dto.InvalidateResponse{ExamID: examID, Deleted: 2}, m.err
}

type exporterMock struct {
	file *dto.ExportFile
	err  error
	last dto.ExportRankingRequest
}

func (m *exporterMock) ExportCohort(ctx context.Context, req dto.ExportRankingRequest) (*dto.ExportFile, error) {
	m.last = req
	return m.file, m.err
}

type schedulerMock struct {
	job  *dto.PrecomputeJob
	err  error
	last dto.PrecomputeRequest
}

func (m *schedulerMock) Enqueue(ctx context.Context, req dto.PrecomputeRequest) (*dto.PrecomputeJob, error) {
	m.last = req
	return m.job, m.err
}

func (m *schedulerMock) Status(jobID string) (*dto.PrecomputeJob, error) {
	if m.job == nil || m.job.JobID != jobID {
		return nil, appErrors.ErrNotFound
	}
	return m.job, nil
}

func newGradingRouter(h *GradingHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r.Group("/api/v1"))
	return r
}

func doRequest(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
	Meta       map[string]any     `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func threeStudentRanking() *models.CohortRanking {
	return &models.CohortRanking{
		ExamID:     "exam-1",
		RankBy:     "mean_points",
		CohortSize: 3,
		Results: []models.AggregateResult{
			{StudentID: "stu-1", Rank: 1}, {StudentID: "stu-2", Rank: 2}, {StudentID: "stu-3", Rank: 3},
		},
	}
}

func TestGradingHandlerRankings(t *testing.T) {
	svc := &gradingServiceMock{ranking: threeStudentRanking()}
	r := newGradingRouter(NewGradingHandler(svc, nil, nil))

	w := doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings?classId=c1&streamId=east&rankBy=total_points&refresh=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.CohortRankingRequest{ExamID: "exam-1", ClassID: "c1", StreamID: "east", RankBy: "total_points", Refresh: true}, svc.lastRank)

	var ranking models.CohortRanking
	env := decode(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &ranking))
	assert.Len(t, ranking.Results, 3)
	assert.Nil(t, env.Pagination)
}

func TestGradingHandlerRankingsPaginates(t *testing.T) {
	svc := &gradingServiceMock{ranking: threeStudentRanking()}
	r := newGradingRouter(NewGradingHandler(svc, nil, nil))

	w := doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings?page=2&pageSize=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	var ranking models.CohortRanking
	require.NoError(t, json.Unmarshal(env.Data, &ranking))
	require.Len(t, ranking.Results, 1)
	assert.Equal(t, "stu-3", ranking.Results[0].StudentID)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 2, TotalCount: 3}, env.Pagination)
	assert.Len(t, svc.ranking.Results, 3)

	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings?page=9&pageSize=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings?pageSize=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradingHandlerRankingsHugePageIsEmpty(t *testing.T) {
	svc := &gradingServiceMock{ranking: threeStudentRanking()}
	r := newGradingRouter(NewGradingHandler(svc, nil, nil))

	for _, page := range []string{"9223372036854775807", "36893488147419104", "3"} {
		w := doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings?pageSize=500&page="+page, "")
		require.Equal(t, http.StatusOK, w.Code, page)
		var ranking models.CohortRanking
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &ranking))
		assert.Empty(t, ranking.Results, page)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings?pageSize=500&page=99999999999999999999", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		total, page, size, lo, hi int
	}{
		{3, 1, 2, 0, 2},
		{3, 2, 2, 2, 3},
		{3, 3, 2, 3, 3},
		{0, 1, 10, 0, 0},
		{10, int(^uint(0) >> 1), 500, 10, 10},
	}
	for _, tc := range cases {
		lo, hi := pageBounds(tc.total, tc.page, tc.size)
		assert.Equal(t, tc.lo, lo)
		assert.Equal(t, tc.hi, hi)
	}
}

func TestGradingHandlerRankingsMapsErrors(t *testing.T) {
	svc := &gradingServiceMock{err: appErrors.Clone(appErrors.ErrGradingSystemMissing, "grading system kcse has no rules")}
	r := newGradingRouter(NewGradingHandler(svc, nil, nil))

	w := doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings", "")
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "GRADING_SYSTEM_MISSING", env.Error.Code)

	svc.err = errors.New("connection reset")
	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGradingHandlerExport(t *testing.T) {
	exports := &exporterMock{file: &dto.ExportFile{Filename: "ranking_exam-1_all_all.csv", ContentType: "text/csv", Content: []byte("Rank\n1\n")}}
	r := newGradingRouter(NewGradingHandler(&gradingServiceMock{}, exports, nil))

	w := doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings/export?format=csv&classId=c1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ranking_exam-1_all_all.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Rank\n1\n", w.Body.String())
	assert.Equal(t, "csv", exports.last.Format)
	assert.Equal(t, "c1", exports.last.ClassID)

	exports.err = appErrors.ErrUnsupportedFormat
	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings/export?format=xlsx", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradingHandlerPrecompute(t *testing.T) {
	scheduler := &schedulerMock{job: &dto.PrecomputeJob{JobID: "job-1", ExamID: "exam-1", Status: dto.PrecomputeQueued, Cohorts: 1}}
	r := newGradingRouter(NewGradingHandler(&gradingServiceMock{}, nil, scheduler))

	w := doRequest(r, http.MethodPost, "/api/v1/exams/exam-1/rankings/precompute", `{"rank_by":"total_points","cohorts":[{"class_id":"c1"}]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "exam-1", scheduler.last.ExamID)
	assert.Equal(t, "total_points", scheduler.last.RankBy)
	require.Len(t, scheduler.last.Cohorts, 1)

	w = doRequest(r, http.MethodPost, "/api/v1/exams/exam-1/rankings/precompute", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/exams/exam-1/rankings/precompute", `{"cohorts":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings/precompute/job-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-2/rankings/precompute/job-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(r, http.MethodGet, "/api/v1/exams/exam-1/rankings/precompute/other", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGradingHandlerInvalidate(t *testing.T) {
	svc := &gradingServiceMock{}
	r := newGradingRouter(NewGradingHandler(svc, nil, nil))

	w := doRequest(r, http.MethodDelete, "/api/v1/exams/exam-1/rankings/cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "exam-1", svc.invalidate)
}

func TestGradingHandlerReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &gradingServiceMock{report: &models.StudentReport{ExamID: "exam-1", StudentID: "stu-1"}}
	handler := NewGradingHandler(svc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/exams/exam-1/students/stu-1/report?classId=c1", nil)
	c.Params = gin.Params{{Key: "examId", Value: "exam-1"}, {Key: "studentId", Value: "stu-1"}}

	handler.Report(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.StudentReportRequest{ExamID: "exam-1", StudentID: "stu-1", ClassID: "c1"}, svc.lastReport)
}

func TestGradingHandlerTrend(t *testing.T) {
	svc := &gradingServiceMock{trend: &models.TrendSeries{
		StudentID: "stu-1",
		Points: []models.TrendPoint{
			{Label: "Form 1 T1", MeanPoints: 10.5, Grade: "A-", HasData: true},
			{Label: "Form 1 T2", Grade: models.GradeNotAvailable},
		},
	}}
	r := newGradingRouter(NewGradingHandler(svc, nil, nil))

	w := doRequest(r, http.MethodGet, "/api/v1/students/stu-1/trend", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, []any{"Form 1 T1", "Form 1 T2"}, env.Meta["labels"])
	assert.Equal(t, []any{10.5, 0.0}, env.Meta["values"])
}
