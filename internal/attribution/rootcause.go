// internal/attribution/rootcause.go
package attribution

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// RankByLikelihood returns a copy of revisions ordered by descending
// relevance score. Revisions with equal scores keep their input order.
func RankByLikelihood(revisions []schemas.RevisionInfo) []schemas.RevisionInfo {
	ranked := make([]schemas.RevisionInfo, len(revisions))
	copy(ranked, revisions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	return ranked
}

// SelectRootCause picks the highest ranked revision as the root cause
// candidate. It returns nil when there is nothing to choose from.
func SelectRootCause(revisions []schemas.RevisionInfo) *schemas.RootCauseCandidate {
	if len(revisions) == 0 {
		return nil
	}
	top := RankByLikelihood(revisions)[0]
	return &schemas.RootCauseCandidate{
		Revision:    top,
		Description: fmt.Sprintf("Most likely introduced in commit %s: %s", top.ID, top.Message),
		Confidence:  top.RelevanceScore,
	}
}

// relevantOnly drops revisions that scored zero.
func relevantOnly(revisions []schemas.RevisionInfo) []schemas.RevisionInfo {
	relevant := make([]schemas.RevisionInfo, 0, len(revisions))
	for _, r := range revisions {
		if r.RelevanceScore > 0 {
			relevant = append(relevant, r)
		}
	}
	return relevant
}
