package session

import (
	"strings"
)

// Entry is one row of "jules remote list --session".
type Entry struct {
	ID   string
	Line string
}

// ParseListing returns the rows whose first column is a numeric session id.
func ParseListing(output string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || !isDigits(fields[0]) {
			continue
		}
		entries = append(entries, Entry{ID: fields[0], Line: strings.TrimSpace(line)})
	}
	return entries
}

// FindSession returns the listing line whose id column is exactly sid.
func FindSession(output, sid string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == sid {
			return line, true
		}
	}
	return "", false
}

// statusText drops the id and the three columns that follow it (repo, created, updated).
func statusText(line string) string {
	fields := strings.Fields(line)
	if len(fields) <= 4 {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[4:], " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
