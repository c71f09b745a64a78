package review

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
)

// normalizeID returns the form in which identifiers are compared.
func normalizeID(id string) string {
	return core.CleanString(id, true /* lower */)
}

// sameID reports whether `a` and `b` name the same non-empty identifier, ignoring case
// and surrounding whitespace.
func sameID(a, b string) bool {
	na := normalizeID(a)
	return na != "" && na == normalizeID(b)
}

// Pairing is an unordered pair of reviewers. B is empty when A has no partner.
type Pairing struct {
	A string
	B string
}

// Has reports whether `id` is a member of the pairing.
func (p Pairing) Has(id string) bool {
	return sameID(id, p.A) || sameID(id, p.B)
}

// MarshalJSON encodes the pairing as a 2-element array, an absent partner being null.
func (p Pairing) MarshalJSON() ([]byte, error) {
	pair := [2]*string{&p.A, nil}
	if p.B != "" {
		pair[1] = &p.B
	}
	return json.Marshal(pair)
}

func (p *Pairing) UnmarshalJSON(data []byte) error {
	var pair []*string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if pair == nil {
		return errors.New("pairing cannot be null")
	}
	if len(pair) != 2 {
		return errors.Errorf("pairing must have 2 elements, got %d", len(pair))
	}
	if pair[0] == nil || core.CleanString(*pair[0]) == "" {
		return errors.New("pairing must have a first member")
	}
	p.A = *pair[0]
	p.B = ""
	if pair[1] != nil {
		// an absent partner is only ever written as null
		if core.CleanString(*pair[1]) == "" {
			return errors.New("pairing partner must be null or non-empty")
		}
		p.B = *pair[1]
	}
	return nil
}

// Partition is the complete pairing assignment of a review round.
type Partition []Pairing

// Members returns every identifier of the partition, in order of appearance.
func (p Partition) Members() []string {
	members := make([]string, 0, len(p)*2)
	for _, pairing := range p {
		members = append(members, pairing.A)
		if pairing.B != "" {
			members = append(members, pairing.B)
		}
	}
	return members
}

// Has reports whether `id` is a member of any pairing of the partition.
func (p Partition) Has(id string) bool {
	for _, pairing := range p {
		if pairing.Has(id) {
			return true
		}
	}
	return false
}

// Encode serializes the partition in its persisted form: `[["a@x.com","b@x.com"],["c@x.com",null]]`.
func (p Partition) Encode() ([]byte, error) {
	if p == nil {
		p = Partition{}
	}
	return json.Marshal(p)
}

// DecodePartition parses a persisted partition.
func DecodePartition(data []byte) (Partition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty partition document")
	}
	var p Partition
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("partition cannot be null")
	}
	return p, nil
}

// Round is the pairing assignment recorded for one workbook.
type Round struct {
	Title     string    `json:"title"`
	Partition Partition `json:"partition"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// SendReport summarizes the forwarding of submissions to their reviewers.
type SendReport struct {
	Round     Round    `json:"round"`
	Forwarded int      `json:"forwarded"`
	Missing   []string `json:"missing"` // members whose submission could not be found
}

// Reconciliation is the outcome of matching returned reviews against a round.
type Reconciliation struct {
	Round string `json:"round"`
	// Happy members received their reviewed workbook.
	Happy []string `json:"happy"`
	// Unhappy members have a partner who did not return a review.
	Unhappy []string `json:"unhappy"`
	// Unpaired members have no partner in the round.
	Unpaired []string `json:"unpaired"`
	// Unmatched are responders that are not part of the round.
	Unmatched []string `json:"unmatched"`
	// Suggestions maps an unmatched responder to the closest round member.
	Suggestions map[string]string `json:"suggestions,omitempty"`
}
