package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connorferster/python-course-admin/core"
)

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    core.Members
		wantErr error
	}{
		{
			name: "valid",
			data: "members:\n  - email: Connor.Ferster@RJC.ca\n    name: Connor\n  - email: riley@rjc.ca\n",
			want: core.Members{"connor.ferster@rjc.ca": "Connor", "riley@rjc.ca": "Riley"},
		},
		{name: "empty", data: "", want: core.Members{}},
		{name: "invalid email", data: "members:\n  - email: riley\n", wantErr: core.ErrInvalidConfiguration},
		{name: "missing email", data: "members:\n  - name: Riley\n", wantErr: core.ErrInvalidConfiguration},
		{
			name:    "duplicate",
			data:    "members:\n  - email: riley@rjc.ca\n  - email: RILEY@rjc.ca\n",
			wantErr: core.ErrInvalidConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRoster([]byte(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseRoster([]byte("members: [\n"))
		assert.Error(t, err)
	})
}

func TestLoadRoster(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(fp, []byte("members:\n  - email: a@x.com\n    name: Ann\n"), 0o600))

	got, err := LoadRoster(fp)
	require.NoError(t, err)
	assert.Equal(t, core.Members{"a@x.com": "Ann"}, got)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
