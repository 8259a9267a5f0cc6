package grading

import (
	"sort"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// Policy caps how many subjects of each type count in a papers curriculum.
// A cap of zero or less disables that cap.
type Policy struct {
	CompulsoryCap int
	ElectiveCap   int
}

// DefaultPolicy counts five compulsory subjects and the best two electives.
func DefaultPolicy() Policy {
	return Policy{CompulsoryCap: 5, ElectiveCap: 2}
}

// SelectSubjects returns the subjects that count toward the aggregate.
// Subjects scoring zero are treated as not sat. When any subject uses papers
// the compulsory list keeps its input order and is truncated, while electives
// are ranked by points, then score, then subject id.
func SelectSubjects(results []models.SubjectResult, policy Policy) []models.SubjectResult {
	papersCurriculum := false
	for _, r := range results {
		if r.UsesPapers {
			papersCurriculum = true
			break
		}
	}

	valid := make([]models.SubjectResult, 0, len(results))
	for _, r := range results {
		if r.Score == 0 {
			continue
		}
		valid = append(valid, r)
	}
	if !papersCurriculum {
		return valid
	}

	var compulsory, electives []models.SubjectResult
	for _, r := range valid {
		if r.SubjectType == models.SubjectTypeElective {
			electives = append(electives, r)
		} else {
			compulsory = append(compulsory, r)
		}
	}
	sort.SliceStable(electives, func(i, j int) bool {
		a, b := electives[i], electives[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.SubjectID < b.SubjectID
	})

	selected := make([]models.SubjectResult, 0, len(valid))
	selected = append(selected, capped(compulsory, policy.CompulsoryCap)...)
	selected = append(selected, capped(electives, policy.ElectiveCap)...)
	return selected
}

func capped(list []models.SubjectResult, limit int) []models.SubjectResult {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
