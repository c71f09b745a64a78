package review

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// minSuggestionRatio is the similarity needed to suggest a round member for an unmatched responder.
const minSuggestionRatio = .8

// FindPairMatch returns the partner of `id` in the first pairing that contains it.
// Identifiers match regardless of case and surrounding whitespace; the partner is returned as stored.
// ok is false when `id` is in no pairing or has no partner.
func FindPairMatch(id string, p Partition) (partner string, ok bool) {
	for _, pairing := range p {
		switch {
		case sameID(id, pairing.A):
			return pairing.B, pairing.B != ""
		case sameID(id, pairing.B):
			return pairing.A, true
		}
	}
	return "", false
}

// ComputeUnhappy splits the members of `p` according to whether their partner is in `responded`.
// A member is happy when their partner responded, i.e. returned a review addressed to them.
func ComputeUnhappy(p Partition, responded []string) Reconciliation {
	// normalized id -> id as given
	respondedSet := make(map[string]string, len(responded))
	for _, id := range responded {
		if key := normalizeID(id); key != "" {
			if _, ok := respondedSet[key]; !ok {
				respondedSet[key] = id
			}
		}
	}

	rec := Reconciliation{
		Happy:     []string{},
		Unhappy:   []string{},
		Unpaired:  []string{},
		Unmatched: []string{},
	}
	seen := make(map[string]bool)
	for _, member := range p.Members() {
		key := normalizeID(member)
		if seen[key] {
			continue
		}
		seen[key] = true

		partner, ok := FindPairMatch(member, p)
		switch {
		case !ok:
			rec.Unpaired = append(rec.Unpaired, member)
		case respondedSet[normalizeID(partner)] != "":
			rec.Happy = append(rec.Happy, member)
		default:
			rec.Unhappy = append(rec.Unhappy, member)
		}
	}

	for key, id := range respondedSet {
		if !seen[key] {
			rec.Unmatched = append(rec.Unmatched, id)
		}
	}
	sort.Strings(rec.Happy)
	sort.Strings(rec.Unhappy)
	sort.Strings(rec.Unpaired)
	sort.Strings(rec.Unmatched)

	for _, id := range rec.Unmatched {
		if match := closestMember(id, p); match != "" {
			if rec.Suggestions == nil {
				rec.Suggestions = make(map[string]string)
			}
			rec.Suggestions[id] = match
		}
	}
	return rec
}

// closestMember returns the member of `p` most similar to `id`, if similar enough.
// `id` itself is never suggested.
func closestMember(id string, p Partition) string {
	var (
		best      string
		bestRatio float64
	)
	target := strings.Split(strings.ToLower(id), "")
	for _, member := range p.Members() {
		if sameID(id, member) {
			continue
		}
		ratio := difflib.NewMatcher(target, strings.Split(strings.ToLower(member), "")).Ratio()
		if ratio > bestRatio || (ratio == bestRatio && member < best) {
			best, bestRatio = member, ratio
		}
	}
	if bestRatio < minSuggestionRatio {
		return ""
	}
	return best
}
