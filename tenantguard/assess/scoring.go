package assess

import (
	"math"
	"sort"

	"github.com/TenantGuard/go-api/tenantguard"
)

// maxRecommendations bounds the recommendation list on a DomainScore.
const maxRecommendations = 5

// severityDeductions are the per-failed-check score deductions.
// Informational checks never deduct.
var severityDeductions = map[tenantguard.Severity]int{
	tenantguard.SeverityCritical:      25,
	tenantguard.SeverityHigh:          15,
	tenantguard.SeverityMedium:        10,
	tenantguard.SeverityLow:           5,
	tenantguard.SeverityInformational: 0,
}

// Grade maps a 0-100 score to a letter grade. The thresholds are fixed
// product policy: >=90 A, >=80 B, >=70 C, >=60 D, below F.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// ScoreFindings computes the DomainScore for a set of normalized findings.
// Pure and deterministic: each failed check deducts its severity weight from
// 100, compliant findings never deduct, and the result is clamped to [0,100].
func ScoreFindings(findings *tenantguard.NormalizedFindings) tenantguard.DomainScore {
	score := tenantguard.DomainScore{
		Domain:      findings.Domain,
		MaxScore:    100,
		IsAvailable: true,
	}

	deduction := 0
	type rec struct {
		rank int
		idx  int
		text string
	}
	var recs []rec

	for i, f := range findings.Findings {
		score.TotalChecks++
		if f.IsCompliant {
			score.PassedChecks++
			continue
		}
		score.FailedChecks++
		deduction += severityDeductions[f.Severity]

		switch f.Severity {
		case tenantguard.SeverityCritical:
			score.CriticalFindings++
		case tenantguard.SeverityHigh:
			score.HighFindings++
		case tenantguard.SeverityMedium:
			score.MediumFindings++
		case tenantguard.SeverityLow:
			score.LowFindings++
		}

		if f.Remediation != "" {
			recs = append(recs, rec{rank: f.Severity.Rank(), idx: i, text: f.Remediation})
		}
	}

	score.Score = 100 - deduction
	if score.Score < 0 {
		score.Score = 0
	}
	score.Grade = Grade(score.Score)

	// Highest severity first; insertion order breaks ties.
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].rank != recs[j].rank {
			return recs[i].rank > recs[j].rank
		}
		return recs[i].idx < recs[j].idx
	})
	for i := 0; i < len(recs) && i < maxRecommendations; i++ {
		score.TopRecommendations = append(score.TopRecommendations, recs[i].text)
	}

	return score
}

// UnavailableScore returns the zero-score placeholder recorded for a domain
// whose data could not be collected. Unavailable domains are excluded from
// the overall-score denominator.
func UnavailableScore(domain tenantguard.Domain, reason string) tenantguard.DomainScore {
	return tenantguard.DomainScore{
		Domain:            domain,
		MaxScore:          100,
		Grade:             Grade(0),
		IsAvailable:       false,
		UnavailableReason: reason,
	}
}

// OverallScore returns the rounded arithmetic mean of the available domain
// scores, or nil when no domain had usable data.
func OverallScore(scores []tenantguard.DomainScore) *int {
	sum := 0
	count := 0
	for _, s := range scores {
		if !s.IsAvailable {
			continue
		}
		sum += s.Score
		count++
	}
	if count == 0 {
		return nil
	}
	overall := int(math.Round(float64(sum) / float64(count)))
	return &overall
}
