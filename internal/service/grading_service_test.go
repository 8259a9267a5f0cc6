package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/dto"
	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/pkg/config"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

type gradingStoreStub struct {
	exams    []models.ExamConfig
	rules    map[string][]models.GradingRule
	subjects map[string][]models.SubjectConfig
	rows     []models.ResultRow
	cohort   []string

	mu          sync.Mutex
	resultCalls int
}

func (s *gradingStoreStub) ListBySystem(ctx context.Context, systemID string) ([]models.GradingRule, error) {
	return s.rules[systemID], nil
}

func (s *gradingStoreStub) ListBySystems(ctx context.Context, systemIDs []string) (map[string][]models.GradingRule, error) {
	out := make(map[string][]models.GradingRule)
	for _, id := range systemIDs {
		if rules, ok := s.rules[id]; ok {
			out[id] = rules
		}
	}
	return out, nil
}

func (s *gradingStoreStub) ListByExam(ctx context.Context, examID string) ([]models.SubjectConfig, error) {
	return s.subjects[examID], nil
}

func (s *gradingStoreStub) ListByExams(ctx context.Context, examIDs []string) (map[string][]models.SubjectConfig, error) {
	out := make(map[string][]models.SubjectConfig)
	for _, id := range examIDs {
		out[id] = s.subjects[id]
	}
	return out, nil
}

func (s *gradingStoreStub) FindByID(ctx context.Context, examID string) (*models.ExamConfig, error) {
	for _, exam := range s.exams {
		if exam.ExamID == examID {
			found := exam
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *gradingStoreStub) ListByIDs(ctx context.Context, examIDs []string) ([]models.ExamConfig, error) {
	wanted := make(map[string]bool, len(examIDs))
	for _, id := range examIDs {
		wanted[id] = true
	}
	var out []models.ExamConfig
	for _, exam := range s.exams {
		if wanted[exam.ExamID] {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (s *gradingStoreStub) ListConfirmedByExam(ctx context.Context, examID string, studentIDs []string) ([]models.ResultRow, error) {
	s.mu.Lock()
	s.resultCalls++
	s.mu.Unlock()
	allowed := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		allowed[id] = true
	}
	var out []models.ResultRow
	for _, row := range s.rows {
		if row.ExamID == examID && (len(studentIDs) == 0 || allowed[row.StudentID]) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *gradingStoreStub) ListConfirmedByStudent(ctx context.Context, studentID string) ([]models.ResultRow, error) {
	var out []models.ResultRow
	for _, row := range s.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *gradingStoreStub) ListStudentIDs(ctx context.Context, filter models.CohortFilter) ([]string, error) {
	return s.cohort, nil
}

func (s *gradingStoreStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultCalls
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := 0
	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
			deleted++
		}
	}
	return deleted, nil
}

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.items))
	for key := range c.items {
		out = append(out, key)
	}
	return out
}

func kcseTable() []models.GradingRule {
	bands := []struct {
		min, max float64
		grade    string
		points   int
	}{
		{80, 100, "A", 12}, {75, 79, "A-", 11}, {70, 74, "B+", 10}, {65, 69, "B", 9},
		{60, 64, "B-", 8}, {55, 59, "C+", 7}, {50, 54, "C", 6}, {45, 49, "C-", 5},
		{40, 44, "D+", 4}, {35, 39, "D", 3}, {30, 34, "D-", 2}, {0, 29, "E", 1},
	}
	rules := make([]models.GradingRule, 0, len(bands))
	for _, b := range bands {
		rules = append(rules, models.GradingRule{GradingSystemID: "kcse", MinScore: b.min, MaxScore: b.max, Grade: b.grade, Points: b.points})
	}
	return rules
}

func row(examID, studentID, subjectID string, score float64) models.ResultRow {
	return models.ResultRow{ExamID: examID, StudentID: studentID, SubjectID: subjectID, Score: score}
}

func newGradingStore() *gradingStoreStub {
	subjects := []models.SubjectConfig{
		{ID: "eng", Name: "English", Type: models.SubjectTypeCompulsory},
		{ID: "mat", Name: "Mathematics", Type: models.SubjectTypeCompulsory},
	}
	return &gradingStoreStub{
		exams: []models.ExamConfig{
			{ExamID: "exam-1", GradingSystemID: "kcse", MinSubjects: 2, ClassLevel: 2, Term: 1, Year: 2024},
			{ExamID: "exam-2", GradingSystemID: "kcse", MinSubjects: 2, ClassLevel: 2, Term: 2, Year: 2024},
			{ExamID: "exam-bare", GradingSystemID: "missing", MinSubjects: 2},
		},
		rules:    map[string][]models.GradingRule{"kcse": kcseTable()},
		subjects: map[string][]models.SubjectConfig{"exam-1": subjects, "exam-2": subjects, "exam-bare": subjects},
		rows: []models.ResultRow{
			row("exam-1", "stu-1", "eng", 80), row("exam-1", "stu-1", "mat", 70),
			row("exam-1", "stu-2", "eng", 60), row("exam-1", "stu-2", "mat", 50),
			row("exam-2", "stu-1", "eng", 70), row("exam-2", "stu-1", "mat", 70),
		},
		cohort: []string{"stu-3", "stu-2", "stu-1"},
	}
}

func newTestGradingService(store *gradingStoreStub, cache CacheRepository) *GradingService {
	engine, err := NewEngine(config.GradingConfig{
		CompulsoryCap:    5,
		ElectiveCap:      2,
		PointsRounding:   "round",
		TrendLabelFormat: "Form {level} T{term}",
		CurriculumLevels: []int{2},
		CurriculumTerms:  []int{1, 2, 3},
	})
	if err != nil {
		panic(err)
	}
	repos := GradingRepositories{Rules: store, Subjects: store, Exams: store, Results: store, Cohorts: store}
	metrics := NewMetricsService()
	cacheSvc := NewCacheService(cache, metrics, time.Minute, nil, cache != nil)
	return NewGradingService(repos, engine, "mean_points", cacheSvc, metrics, nil, nil)
}

func TestGradingServiceCohortRanking(t *testing.T) {
	svc := newTestGradingService(newGradingStore(), nil)

	ranking, err := svc.CohortRanking(context.Background(), dto.CohortRankingRequest{ExamID: "exam-1", ClassID: "class-1"})
	require.NoError(t, err)
	assert.Equal(t, "mean_points", ranking.RankBy)
	assert.Equal(t, 3, ranking.CohortSize)
	assert.False(t, ranking.NoData)
	require.Len(t, ranking.Results, 3)

	first := ranking.Results[0]
	assert.Equal(t, "stu-1", first.StudentID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, 22, first.TotalPoints)
	assert.Equal(t, 150.0, first.TotalMarks)
	assert.Equal(t, 11.0, first.MeanPoints)
	assert.Equal(t, "A-", first.Grade)
	require.Len(t, first.Subjects, 2)
	assert.True(t, first.Subjects[0].Counted)
	assert.Equal(t, "A", first.Subjects[0].Grade)

	second := ranking.Results[1]
	assert.Equal(t, "stu-2", second.StudentID)
	assert.Equal(t, 2, second.Rank)
	assert.Equal(t, 7.0, second.MeanPoints)
	assert.Equal(t, "C+", second.Grade)

	third := ranking.Results[2]
	assert.Equal(t, "stu-3", third.StudentID)
	assert.Equal(t, 3, third.Rank)
	assert.True(t, third.NoData)
	assert.Equal(t, models.GradeNotAvailable, third.Grade)
	assert.Equal(t, 3, third.CohortSize)
}

func TestGradingServiceCohortRankingUsesCache(t *testing.T) {
	store := newGradingStore()
	cache := newMemoryCache()
	svc := newTestGradingService(store, cache)
	ctx := context.Background()

	first, err := svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "exam-1"})
	require.NoError(t, err)
	second, err := svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "exam-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls())
	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].StudentID, second.Results[i].StudentID)
		assert.Equal(t, first.Results[i].Rank, second.Results[i].Rank)
		assert.Equal(t, first.Results[i].MeanPoints, second.Results[i].MeanPoints)
	}
	assert.Contains(t, cache.keys(), "grading:ranking:exam-1:all:all:mean_points")

	_, err = svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "exam-1", Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls())

	_, err = svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "exam-1", RankBy: "total_marks"})
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls())

	_, err = svc.StudentTrend(ctx, "stu-1")
	require.NoError(t, err)

	res, err := svc.InvalidateExam(ctx, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)
	assert.Empty(t, cache.keys())
}

func TestGradingServiceRankingErrors(t *testing.T) {
	svc := newTestGradingService(newGradingStore(), nil)
	ctx := context.Background()

	_, err := svc.CohortRanking(ctx, dto.CohortRankingRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "exam-1", RankBy: "median"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "unknown"})
	assert.ErrorIs(t, err, appErrors.ErrExamConfigMissing)

	_, err = svc.CohortRanking(ctx, dto.CohortRankingRequest{ExamID: "exam-bare"})
	assert.ErrorIs(t, err, appErrors.ErrGradingSystemMissing)
}

func TestGradingServiceEmptyCohort(t *testing.T) {
	store := newGradingStore()
	store.cohort = nil
	svc := newTestGradingService(store, nil)

	ranking, err := svc.CohortRanking(context.Background(), dto.CohortRankingRequest{ExamID: "exam-1", StreamID: "east"})
	require.NoError(t, err)
	assert.True(t, ranking.NoData)
	assert.Zero(t, ranking.CohortSize)
	assert.Empty(t, ranking.Results)
	assert.Zero(t, store.calls())
}

func TestGradingServiceStudentReport(t *testing.T) {
	svc := newTestGradingService(newGradingStore(), nil)
	ctx := context.Background()

	report, err := svc.StudentReport(ctx, dto.StudentReportRequest{ExamID: "exam-1", StudentID: "stu-2"})
	require.NoError(t, err)
	assert.False(t, report.NoData)
	assert.Equal(t, 2, report.Aggregate.Rank)
	assert.Equal(t, 3, report.Aggregate.CohortSize)
	assert.Equal(t, "C+", report.Aggregate.Grade)

	outsider, err := svc.StudentReport(ctx, dto.StudentReportRequest{ExamID: "exam-1", StudentID: "stu-99"})
	require.NoError(t, err)
	assert.True(t, outsider.NoData)
	assert.Equal(t, models.GradeNotAvailable, outsider.Aggregate.Grade)
	assert.Zero(t, outsider.Aggregate.Rank)

	_, err = svc.StudentReport(ctx, dto.StudentReportRequest{ExamID: "exam-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGradingServiceStudentTrend(t *testing.T) {
	svc := newTestGradingService(newGradingStore(), nil)

	series, err := svc.StudentTrend(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Form 2 T1", "Form 2 T2", "Form 2 T3"}, series.Labels())
	assert.Equal(t, []float64{11, 10, 0}, series.Values())
	assert.Equal(t, "A-", series.Points[0].Grade)
	assert.Equal(t, "B+", series.Points[1].Grade)
	assert.False(t, series.Points[2].HasData)

	empty, err := svc.StudentTrend(context.Background(), "stu-none")
	require.NoError(t, err)
	require.Len(t, empty.Points, 3)
	for _, p := range empty.Points {
		assert.False(t, p.HasData)
	}

	_, err = svc.StudentTrend(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestNewEngineRejectsUnknownPolicy(t *testing.T) {
	_, err := NewEngine(config.GradingConfig{PointsRounding: "flor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRADING_POINTS_ROUNDING")

	_, err = NewEngine(config.GradingConfig{PointsRounding: "round", RankBy: "average"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRADING_RANK_BY")

	engine, err := NewEngine(config.GradingConfig{PointsRounding: "FLOOR", RankBy: "total_points"})
	require.NoError(t, err)
	assert.Equal(t, grading.RoundFloor, engine.Rounding())
}
