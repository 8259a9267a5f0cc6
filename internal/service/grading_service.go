package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/dto"
	"github.com/noah-isme/sma-grading-api/internal/grading"
	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/pkg/config"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
)

const trendCachePattern = cacheNamespace + ":trend:*"

type gradingRuleReader interface {
	ListBySystem(ctx context.Context, systemID string) ([]models.GradingRule, error)
	ListBySystems(ctx context.Context, systemIDs []string) (map[string][]models.GradingRule, error)
}

type subjectConfigReader interface {
	ListByExam(ctx context.Context, examID string) ([]models.SubjectConfig, error)
	ListByExams(ctx context.Context, examIDs []string) (map[string][]models.SubjectConfig, error)
}

type examConfigReader interface {
	FindByID(ctx context.Context, examID string) (*models.ExamConfig, error)
	ListByIDs(ctx context.Context, examIDs []string) ([]models.ExamConfig, error)
}

type resultReader interface {
	ListConfirmedByExam(ctx context.Context, examID string, studentIDs []string) ([]models.ResultRow, error)
	ListConfirmedByStudent(ctx context.Context, studentID string) ([]models.ResultRow, error)
}

type cohortReader interface {
	ListStudentIDs(ctx context.Context, filter models.CohortFilter) ([]string, error)
}

// GradingRepositories groups the read-only collaborators the grading service loads from.
type GradingRepositories struct {
	Rules    gradingRuleReader
	Subjects subjectConfigReader
	Exams    examConfigReader
	Results  resultReader
	Cohorts  cohortReader
}

// GradingService batch-loads rules, subjects and confirmed results, runs
// them through the grading engine and caches the outcome.
type GradingService struct {
	repos     GradingRepositories
	engine    *grading.Engine
	rankBy    grading.RankBasis
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEngine builds the grading engine from configuration. Unknown rounding
// or rank basis values are rejected.
func NewEngine(cfg config.GradingConfig) (*grading.Engine, error) {
	rounding, ok := grading.ParseRounding(cfg.PointsRounding)
	if !ok {
		return nil, fmt.Errorf("GRADING_POINTS_ROUNDING %q: want round, floor or ceil", cfg.PointsRounding)
	}
	if cfg.RankBy != "" {
		if _, ok := grading.ParseRankBasis(cfg.RankBy); !ok {
			return nil, fmt.Errorf("GRADING_RANK_BY %q: want mean_points, total_points or total_marks", cfg.RankBy)
		}
	}
	return grading.New(
		grading.WithPolicy(grading.Policy{CompulsoryCap: cfg.CompulsoryCap, ElectiveCap: cfg.ElectiveCap}),
		grading.WithRounding(rounding),
		grading.WithLabelFormat(cfg.TrendLabelFormat),
		grading.WithFrame(grading.Frame{Levels: cfg.CurriculumLevels, Terms: cfg.CurriculumTerms}),
	), nil
}

// NewGradingService wires the service. A nil engine uses the defaults and an
// invalid rankBy falls back to mean points.
func NewGradingService(
	repos GradingRepositories,
	engine *grading.Engine,
	rankBy string,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradingService {
	if engine == nil {
		engine = grading.New()
	}
	basis, ok := grading.ParseRankBasis(rankBy)
	if !ok {
		basis = grading.RankByMeanPoints
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		repos:     repos,
		engine:    engine,
		rankBy:    basis,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// CohortRanking ranks every student of an exam cohort.
func (s *GradingService) CohortRanking(ctx context.Context, req dto.CohortRankingRequest) (*models.CohortRanking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ranking request")
	}
	basis := s.basis(req.RankBy)
	key := rankingCacheKey(req.ExamID, req.ClassID, req.StreamID, string(basis))

	if !req.Refresh {
		var cached models.CohortRanking
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	filter := models.CohortFilter{ExamID: req.ExamID, ClassID: req.ClassID, StreamID: req.StreamID}
	start := time.Now()
	ranking, err := s.computeRanking(ctx, filter, basis)
	students := 0
	if ranking != nil {
		students = ranking.CohortSize
	}
	s.metrics.ObserveComputation("ranking", students, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, ranking, 0)
	s.logger.Debug("cohort ranked",
		zap.String("exam_id", req.ExamID),
		zap.String("class_id", req.ClassID),
		zap.String("stream_id", req.StreamID),
		zap.Int("cohort_size", ranking.CohortSize),
		zap.Duration("took", time.Since(start)),
	)
	return ranking, nil
}

// StudentReport returns one student's breakdown, aggregate and rank. A
// student outside the cohort or without confirmed results gets NoData.
func (s *GradingService) StudentReport(ctx context.Context, req dto.StudentReportRequest) (*models.StudentReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	ranking, err := s.CohortRanking(ctx, dto.CohortRankingRequest{
		ExamID:   req.ExamID,
		ClassID:  req.ClassID,
		StreamID: req.StreamID,
		RankBy:   req.RankBy,
	})
	if err != nil {
		return nil, err
	}

	report := &models.StudentReport{ExamID: req.ExamID, StudentID: req.StudentID}
	for _, result := range ranking.Results {
		if result.StudentID == req.StudentID {
			report.Aggregate = result
			report.NoData = result.NoData
			return report, nil
		}
	}
	report.NoData = true
	report.Aggregate = models.AggregateResult{
		StudentID:  req.StudentID,
		Grade:      models.GradeNotAvailable,
		NoData:     true,
		CohortSize: ranking.CohortSize,
	}
	return report, nil
}

// StudentTrend builds a student's progress series across every exam with
// confirmed results, padded to the configured curriculum frame.
func (s *GradingService) StudentTrend(ctx context.Context, studentID string) (*models.TrendSeries, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	key := trendCacheKey(studentID)
	var cached models.TrendSeries
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	series, err := s.computeTrend(ctx, studentID)
	s.metrics.ObserveComputation("trend", 1, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, series, 0)
	return series, nil
}

// InvalidateExam drops cached rankings for an exam together with cached
// trends, which may include the exam.
func (s *GradingService) InvalidateExam(ctx context.Context, examID string) (*dto.InvalidateResponse, error) {
	if examID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam id is required")
	}
	rankings, err := s.cache.Invalidate(ctx, examCachePattern(examID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to invalidate cached rankings")
	}
	trends, err := s.cache.Invalidate(ctx, trendCachePattern)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to invalidate cached trends")
	}
	s.logger.Info("grading cache invalidated", zap.String("exam_id", examID), zap.Int("deleted", rankings+trends))
	return &dto.InvalidateResponse{ExamID: examID, Deleted: rankings + trends}, nil
}

func (s *GradingService) computeRanking(ctx context.Context, filter models.CohortFilter, basis grading.RankBasis) (*models.CohortRanking, error) {
	exam, err := s.loadExam(ctx, filter.ExamID)
	if err != nil {
		return nil, err
	}
	grades, err := s.loadResolver(ctx, exam.GradingSystemID)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	subjects, err := s.repos.Subjects.ListByExam(ctx, exam.ExamID)
	s.metrics.ObserveDBQuery("subjects_by_exam", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam subjects")
	}

	began = time.Now()
	studentIDs, err := s.repos.Cohorts.ListStudentIDs(ctx, filter)
	s.metrics.ObserveDBQuery("cohort_students", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}

	var rows []models.ResultRow
	if len(studentIDs) > 0 {
		began = time.Now()
		rows, err = s.repos.Results.ListConfirmedByExam(ctx, exam.ExamID, studentIDs)
		s.metrics.ObserveDBQuery("results_by_exam", time.Since(began))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
		}
	}

	results := s.engine.Cohort(grading.CohortInput{
		StudentIDs:  studentIDs,
		Subjects:    subjects,
		Rows:        rows,
		MinSubjects: exam.MinSubjects,
		Grades:      grades,
		RankBy:      basis,
	})

	ranking := &models.CohortRanking{
		ExamID:     exam.ExamID,
		ClassID:    filter.ClassID,
		StreamID:   filter.StreamID,
		RankBy:     string(basis),
		CohortSize: len(results),
		NoData:     true,
		Results:    results,
	}
	for _, r := range results {
		if !r.NoData {
			ranking.NoData = false
			break
		}
	}
	return ranking, nil
}

func (s *GradingService) computeTrend(ctx context.Context, studentID string) (*models.TrendSeries, error) {
	began := time.Now()
	rows, err := s.repos.Results.ListConfirmedByStudent(ctx, studentID)
	s.metrics.ObserveDBQuery("results_by_student", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student results")
	}

	rowsByExam := make(map[string][]models.ResultRow)
	var examIDs []string
	for _, row := range rows {
		if _, ok := rowsByExam[row.ExamID]; !ok {
			examIDs = append(examIDs, row.ExamID)
		}
		rowsByExam[row.ExamID] = append(rowsByExam[row.ExamID], row)
	}
	if len(examIDs) == 0 {
		series := s.engine.Trend(studentID, nil, nil)
		return &series, nil
	}

	began = time.Now()
	exams, err := s.repos.Exams.ListByIDs(ctx, examIDs)
	s.metrics.ObserveDBQuery("exams_by_ids", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exams")
	}

	began = time.Now()
	subjectsByExam, err := s.repos.Subjects.ListByExams(ctx, examIDs)
	s.metrics.ObserveDBQuery("subjects_by_exams", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam subjects")
	}

	resolvers, err := s.loadResolvers(ctx, exams)
	if err != nil {
		return nil, err
	}

	perExam := make([]grading.ExamSubjects, 0, len(exams))
	for _, exam := range exams {
		perExam = append(perExam, grading.ExamSubjects{
			Exam:     exam,
			Subjects: s.engine.ResolveSubjects(subjectsByExam[exam.ExamID], rowsByExam[exam.ExamID], resolvers[exam.GradingSystemID]),
		})
	}
	slices := s.engine.Slices(perExam, resolvers)
	series := s.engine.Trend(studentID, slices, resolvers)
	return &series, nil
}

func (s *GradingService) loadExam(ctx context.Context, examID string) (*models.ExamConfig, error) {
	began := time.Now()
	exam, err := s.repos.Exams.FindByID(ctx, examID)
	s.metrics.ObserveDBQuery("exam_by_id", time.Since(began))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrExamConfigMissing, fmt.Sprintf("exam %s has no configuration", examID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.GradingSystemID == "" {
		return nil, appErrors.Clone(appErrors.ErrExamConfigMissing, fmt.Sprintf("exam %s has no grading system", examID))
	}
	return exam, nil
}

func (s *GradingService) loadResolver(ctx context.Context, systemID string) (*grading.GradeResolver, error) {
	began := time.Now()
	rules, err := s.repos.Rules.ListBySystem(ctx, systemID)
	s.metrics.ObserveDBQuery("rules_by_system", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading rules")
	}
	return s.resolver(systemID, rules)
}

func (s *GradingService) loadResolvers(ctx context.Context, exams []models.ExamConfig) (map[string]*grading.GradeResolver, error) {
	var systemIDs []string
	seen := make(map[string]struct{})
	for _, exam := range exams {
		if _, ok := seen[exam.GradingSystemID]; ok || exam.GradingSystemID == "" {
			continue
		}
		seen[exam.GradingSystemID] = struct{}{}
		systemIDs = append(systemIDs, exam.GradingSystemID)
	}

	began := time.Now()
	rulesBySystem, err := s.repos.Rules.ListBySystems(ctx, systemIDs)
	s.metrics.ObserveDBQuery("rules_by_systems", time.Since(began))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading rules")
	}

	resolvers := make(map[string]*grading.GradeResolver, len(systemIDs))
	for _, id := range systemIDs {
		resolver, err := s.resolver(id, rulesBySystem[id])
		if err != nil {
			return nil, err
		}
		resolvers[id] = resolver
	}
	return resolvers, nil
}

func (s *GradingService) resolver(systemID string, rules []models.GradingRule) (*grading.GradeResolver, error) {
	resolver, err := s.engine.GradeResolver(systemID, rules)
	if err != nil {
		if errors.Is(err, grading.ErrNoGradingRules) {
			return nil, appErrors.Clone(appErrors.ErrGradingSystemMissing, fmt.Sprintf("grading system %s has no rules", systemID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build grade resolver")
	}
	return resolver, nil
}

func (s *GradingService) basis(raw string) grading.RankBasis {
	if basis, ok := grading.ParseRankBasis(raw); ok {
		return basis
	}
	return s.rankBy
}
