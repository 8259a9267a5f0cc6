package grading

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// ErrNoGradingRules is returned when a grading system has no rule rows at all.
var ErrNoGradingRules = errors.New("grading: no rules for grading system")

// Rounding converts a mean-points value into the integer used for points lookups.
type Rounding string

const (
	// RoundNearest rounds half away from zero.
	RoundNearest Rounding = "round"
	// RoundFloor truncates toward negative infinity.
	RoundFloor Rounding = "floor"
	// RoundCeil rounds toward positive infinity.
	RoundCeil Rounding = "ceil"
)

// ParseRounding maps a config value to a Rounding. An empty value is
// RoundNearest; unknown values report false.
func ParseRounding(raw string) (Rounding, bool) {
	switch Rounding(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoundNearest:
		return RoundNearest, true
	case RoundFloor:
		return RoundFloor, true
	case RoundCeil:
		return RoundCeil, true
	default:
		return RoundNearest, false
	}
}

func (r Rounding) apply(v float64) int {
	switch r {
	case RoundFloor:
		return int(math.Floor(v))
	case RoundCeil:
		return int(math.Ceil(v))
	default:
		return int(math.Round(v))
	}
}

// excluded grades never serve as the fallback band.
var excludedFallbackGrades = map[string]struct{}{"X": {}, "Y": {}}

// GradeResolver maps scores or mean points to a (grade, points) pair for one grading system.
type GradeResolver struct {
	systemID string
	rules    []models.GradingRule
	rounding Rounding
}

// NewGradeResolver keeps the rules of systemID (all rules when systemID is empty),
// ordered by min_score. It fails only when no rule is left.
func NewGradeResolver(systemID string, rules []models.GradingRule, rounding Rounding) (*GradeResolver, error) {
	scoped := make([]models.GradingRule, 0, len(rules))
	for _, rule := range rules {
		if systemID == "" || rule.GradingSystemID == systemID {
			scoped = append(scoped, rule)
		}
	}
	if len(scoped) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoGradingRules, systemID)
	}
	sort.SliceStable(scoped, func(i, j int) bool {
		return scoped[i].MinScore < scoped[j].MinScore
	})
	if rounding == "" {
		rounding = RoundNearest
	}
	return &GradeResolver{systemID: systemID, rules: scoped, rounding: rounding}, nil
}

// SystemID returns the grading system the resolver was built for.
func (r *GradeResolver) SystemID() string {
	return r.systemID
}

// ByScore finds the band containing value. Overlapping bands resolve to the
// closest midpoint, then the lower min_score.
func (r *GradeResolver) ByScore(value float64) models.GradePoints {
	if r == nil {
		return notAvailable()
	}
	var (
		best     *models.GradingRule
		bestDist float64
	)
	for i := range r.rules {
		rule := &r.rules[i]
		if value < rule.MinScore || value > rule.MaxScore {
			continue
		}
		dist := math.Abs(value - (rule.MinScore+rule.MaxScore)/2)
		if best == nil || dist < bestDist {
			best, bestDist = rule, dist
		}
	}
	if best != nil {
		return models.GradePoints{Grade: best.Grade, Points: best.Points}
	}
	return r.fallback(value)
}

// ByPoints finds the row whose points equal the rounded value. Several rows
// with the same points resolve to the highest band.
func (r *GradeResolver) ByPoints(value float64) models.GradePoints {
	if r == nil {
		return notAvailable()
	}
	if math.IsNaN(value) {
		return r.fallback(0)
	}
	target := r.rounding.apply(value)
	var best *models.GradingRule
	for i := range r.rules {
		rule := &r.rules[i]
		if rule.Points != target {
			continue
		}
		if best == nil || rule.MaxScore > best.MaxScore ||
			(rule.MaxScore == best.MaxScore && rule.MinScore > best.MinScore) {
			best = rule
		}
	}
	if best != nil {
		return models.GradePoints{Grade: best.Grade, Points: best.Points}
	}
	return r.fallback(value)
}

func (r *GradeResolver) fallback(value float64) models.GradePoints {
	if !(value > 0) {
		return notAvailable()
	}
	// rules are sorted by min_score, so the first usable one is the lowest band
	for _, rule := range r.rules {
		if _, skip := excludedFallbackGrades[strings.ToUpper(strings.TrimSpace(rule.Grade))]; skip {
			continue
		}
		return models.GradePoints{Grade: rule.Grade, Points: rule.Points}
	}
	return models.GradePoints{Grade: models.GradeFallback, Points: models.PointsFallback}
}

func notAvailable() models.GradePoints {
	return models.GradePoints{Grade: models.GradeNotAvailable, Points: 0}
}
