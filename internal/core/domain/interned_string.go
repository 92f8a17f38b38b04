package domain

import "unique"

// InternedString is a target or file name backed by a unique.Handle.
// Equal names compare equal in O(1), which the graph relies on for map keys.
type InternedString struct {
	h unique.Handle[string]
}

// NewInternedString interns s.
func NewInternedString(s string) InternedString {
	return InternedString{h: unique.Make(s)}
}

// NewInternedStrings interns every element of names.
func NewInternedStrings(names []string) []InternedString {
	res := make([]InternedString, len(names))
	for i, name := range names {
		res[i] = NewInternedString(name)
	}
	return res
}

func (is InternedString) String() string {
	if is.IsZero() {
		return ""
	}
	return is.h.Value()
}

// IsZero reports whether the string was never set.
func (is InternedString) IsZero() bool {
	return is == InternedString{}
}

// Strings converts interned strings back to plain strings.
func Strings(in []InternedString) []string {
	res := make([]string, len(in))
	for i, s := range in {
		res[i] = s.String()
	}
	return res
}
