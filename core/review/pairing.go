package review

import (
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
)

// Shuffler is a source of random permutations. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewShuffler returns a seeded random source; a zero seed uses the current time.
func NewShuffler(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// CreateRandomPairings returns random pairings of the unique, non-empty `participants`.
// If there is an odd number of participants then the last one is paired with `filler`.
//
// The participants are sorted before being shuffled so that a seeded Shuffler always
// produces the same partition for the same set.
func CreateRandomPairings(participants []string, filler string, rnd Shuffler) (Partition, error) {
	if len(participants) == 0 {
		return Partition{}, nil
	}

	ids := make([]string, len(participants))
	copy(ids, participants)
	sort.Strings(ids)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		key := normalizeID(id)
		if key == "" {
			return nil, errors.Wrap(core.ErrInvalidConfiguration, "empty participant")
		}
		if seen[key] {
			return nil, errors.Wrapf(core.ErrInvalidConfiguration, "duplicate participant %q", id)
		}
		seen[key] = true
	}

	odd := len(ids)%2 == 1
	if odd {
		if normalizeID(filler) == "" {
			return nil, errors.Wrapf(core.ErrInvalidConfiguration, "odd number of participants (%d) and no filler", len(ids))
		}
		if seen[normalizeID(filler)] {
			return nil, errors.Wrapf(core.ErrInvalidConfiguration, "filler %q is also a participant", filler)
		}
	}

	rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	pairs := make(Partition, 0, (len(ids)+1)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		pairs = append(pairs, Pairing{A: ids[i], B: ids[i+1]})
	}
	if odd {
		pairs = append(pairs, Pairing{A: ids[len(ids)-1], B: filler})
	}
	return pairs, nil
}
