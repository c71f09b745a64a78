package core

import (
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// LocalPart returns the lower-cased user name portion of an email address.
// e.g. "CFerster@rjc.ca" returns "cferster"
func LocalPart(email string) string {
	email = CleanString(email, true /* lower */)
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}

// DisplayName returns the address' name, or a title-cased local part when the sender has none.
// e.g. "connor.ferster@rjc.ca" returns "Connor Ferster"
func DisplayName(addr mail.Address) string {
	if name := CleanString(addr.Name); name != "" {
		return name
	}
	local := strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(LocalPart(addr.Address))
	return titleCaser.String(strings.Join(strings.Fields(local), " "))
}

// SplitFolder splits a folder path like "Python Course/Workbook 1" into its elements.
func SplitFolder(path string) []string {
	parts := strings.Split(path, "/")
	folder := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanString(p); p != "" {
			folder = append(folder, p)
		}
	}
	return folder
}
