package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPairMatch(t *testing.T) {
	p := Partition{{A: "a@x.com", B: "b@x.com"}, {A: "c@x.com", B: "d@x.com"}, {A: "e@x.com"}}

	tests := []struct {
		name        string
		id          string
		wantPartner string
		wantOK      bool
	}{
		{name: "first member", id: "a@x.com", wantPartner: "b@x.com", wantOK: true},
		{name: "second member", id: "b@x.com", wantPartner: "a@x.com", wantOK: true},
		{name: "second pairing", id: "d@x.com", wantPartner: "c@x.com", wantOK: true},
		{name: "no partner", id: "e@x.com"},
		{name: "unknown", id: "z@x.com"},
		{name: "empty id", id: ""},
		{name: "blank id", id: "  "},
		{name: "case and whitespace", id: " B@X.com ", wantPartner: "a@x.com", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partner, ok := FindPairMatch(tt.id, p)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPartner, partner)
		})
	}

	t.Run("mixed-case stored partition", func(t *testing.T) {
		legacy, err := DecodePartition([]byte(`[["CFerster@rjc.ca","riley@rjc.ca"]]`))
		require.NoError(t, err)
		partner, ok := FindPairMatch("cferster@rjc.ca", legacy)
		assert.True(t, ok)
		assert.Equal(t, "riley@rjc.ca", partner)
	})

	t.Run("first pairing wins", func(t *testing.T) {
		dup := Partition{{A: "a@x.com", B: "b@x.com"}, {A: "c@x.com", B: "a@x.com"}}
		partner, ok := FindPairMatch("a@x.com", dup)
		assert.True(t, ok)
		assert.Equal(t, "b@x.com", partner)
	})
}

func TestComputeUnhappy(t *testing.T) {
	tests := []struct {
		name      string
		partition Partition
		responded []string
		want      Reconciliation
	}{
		{
			name:      "pinned example",
			partition: Partition{{A: "a", B: "b"}, {A: "c", B: "d"}},
			responded: []string{"b", "c"},
			want: Reconciliation{
				Happy: []string{"a", "d"}, Unhappy: []string{"b", "c"},
				Unpaired: []string{}, Unmatched: []string{},
			},
		},
		{
			name:      "nobody responded",
			partition: Partition{{A: "a", B: "b"}, {A: "c", B: "d"}},
			want: Reconciliation{
				Happy: []string{}, Unhappy: []string{"a", "b", "c", "d"},
				Unpaired: []string{}, Unmatched: []string{},
			},
		},
		{
			name:      "everybody responded",
			partition: Partition{{A: "a", B: "b"}, {A: "c", B: "d"}},
			responded: []string{"d", "c", "b", "a"},
			want: Reconciliation{
				Happy: []string{"a", "b", "c", "d"}, Unhappy: []string{},
				Unpaired: []string{}, Unmatched: []string{},
			},
		},
		{
			name:      "filler is part of the universe",
			partition: Partition{{A: "a", B: "b"}, {A: "c", B: "filler"}},
			responded: []string{"a", "b", "filler"},
			want: Reconciliation{
				Happy: []string{"a", "b", "c"}, Unhappy: []string{"filler"},
				Unpaired: []string{}, Unmatched: []string{},
			},
		},
		{
			name:      "null partner",
			partition: Partition{{A: "a", B: "b"}, {A: "c"}},
			responded: []string{"a", "c"},
			want: Reconciliation{
				Happy: []string{"b"}, Unhappy: []string{"a"},
				Unpaired: []string{"c"}, Unmatched: []string{},
			},
		},
		{
			name:      "unmatched responders",
			partition: Partition{{A: "a@x.com", B: "b@x.com"}},
			responded: []string{"a@x.com", "zed@y.com", "", "b@x.co"},
			want: Reconciliation{
				Happy: []string{"b@x.com"}, Unhappy: []string{"a@x.com"},
				Unpaired: []string{}, Unmatched: []string{"b@x.co", "zed@y.com"},
				Suggestions: map[string]string{"b@x.co": "b@x.com"},
			},
		},
		{
			name:      "mixed-case stored partition",
			partition: Partition{{A: "CFerster@rjc.ca", B: "riley@rjc.ca"}},
			responded: []string{"cferster@rjc.ca"},
			want: Reconciliation{
				Happy: []string{"riley@rjc.ca"}, Unhappy: []string{"CFerster@rjc.ca"},
				Unpaired: []string{}, Unmatched: []string{},
			},
		},
		{
			name:      "responder case differs from each other",
			partition: Partition{{A: "a@x.com", B: "b@x.com"}},
			responded: []string{"A@x.com", "a@x.com", "B@X.COM "},
			want: Reconciliation{
				Happy: []string{"a@x.com", "b@x.com"}, Unhappy: []string{},
				Unpaired: []string{}, Unmatched: []string{},
			},
		},
		{
			name:      "empty partition",
			partition: Partition{},
			responded: []string{"a"},
			want: Reconciliation{
				Happy: []string{}, Unhappy: []string{},
				Unpaired: []string{}, Unmatched: []string{"a"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeUnhappy(tt.partition, tt.responded))
		})
	}
}

func Test_closestMember(t *testing.T) {
	p := Partition{{A: "connor.ferster@rjc.ca", B: "riley@rjc.ca"}}

	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "same member in another case", id: "Connor.Ferster@RJC.ca", want: ""},
		{name: "self", id: "riley@rjc.ca", want: ""},
		{name: "typo", id: "connor.fester@rjc.ca", want: "connor.ferster@rjc.ca"},
		{name: "unrelated", id: "someone@else.org", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, closestMember(tt.id, p))
		})
	}
}
