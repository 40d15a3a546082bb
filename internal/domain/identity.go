// Package domain contains entity without logic-heavy dependencies, just
// call meta-data and the pure rules derived from it.
package domain

import "strings"

// Identity is the room-level identity string a participant connects with.
// It usually carries either an email-like handle or a human full name.
type Identity string

// DisplayName derives the on-screen name from an identity string.
// Email-like identities keep the part before '@'; multi-word names keep
// the first two words; anything else passes through unchanged.
func (id Identity) DisplayName() string {
	s := string(id)
	if at := strings.Index(s, "@"); at >= 0 {
		return s[:at]
	}
	fields := strings.Fields(s)
	if len(fields) >= 2 {
		return fields[0] + " " + fields[1]
	}
	return s
}

// Initials returns the avatar-fallback initials: first letter of the
// first two words, uppercased. Single-word identities use one letter,
// empty identities yield "U".
func (id Identity) Initials() string {
	fields := strings.Fields(string(id))
	switch {
	case len(fields) >= 2:
		return strings.ToUpper(fields[0][:1] + fields[1][:1])
	case len(fields) == 1:
		return strings.ToUpper(fields[0][:1])
	default:
		return "U"
	}
}
