package review

import (
	"net/mail"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/connorferster/python-course-admin/core"
)

type (
	// RosterEntry is one course member of a roster file.
	RosterEntry struct {
		Email string `yaml:"email"`
		Name  string `yaml:"name"`
	}

	// Roster lists the members of a class, e.g.
	//
	//	members:
	//	  - email: connor.ferster@example.com
	//	    name: Connor Ferster
	Roster struct {
		Members []RosterEntry `yaml:"members"`
	}
)

// LoadRoster reads a YAML roster file.
func LoadRoster(path string) (core.Members, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading roster %s", path)
	}
	return ParseRoster(data)
}

// ParseRoster decodes a YAML roster, rejecting duplicate or malformed addresses.
func ParseRoster(data []byte) (core.Members, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, errors.Wrap(err, "decoding roster")
	}

	members := make(core.Members, len(roster.Members))
	for i, entry := range roster.Members {
		email := core.CleanString(entry.Email, true /* lower */)
		if email == "" || !strings.Contains(email, "@") {
			return nil, errors.Wrapf(core.ErrInvalidConfiguration, "roster entry %d: invalid email %q", i+1, entry.Email)
		}
		if _, ok := members[email]; ok {
			return nil, errors.Wrapf(core.ErrInvalidConfiguration, "roster entry %d: duplicate email %q", i+1, email)
		}
		name := core.CleanString(entry.Name)
		if name == "" {
			name = core.DisplayName(mail.Address{Address: email})
		}
		members[email] = name
	}
	return members, nil
}
