// Package accept parses and evaluates file accept-lists.
//
// An accept-list is a comma-separated string of patterns, the same format
// as the HTML accept attribute:
//
//	.png,image/jpeg,video/*
//
// Each pattern is one of:
//   - an extension (".png"), compared against the part of the file name
//     after its last dot
//   - an exact MIME type ("image/jpeg")
//   - a MIME wildcard ("video/*"), compared against the primary type only
//
// Matching is case-sensitive. An empty list accepts every file.
package accept

import "strings"

// Kind classifies a Rule.
type Kind int

const (
	// KindMIME matches a declared MIME type exactly.
	KindMIME Kind = iota

	// KindExtension matches the file name extension.
	KindExtension

	// KindWildcard matches the primary part of the MIME type.
	KindWildcard
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMIME:
		return "mime"
	case KindExtension:
		return "extension"
	case KindWildcard:
		return "wildcard"
	default:
		return "unknown"
	}
}

// Rule is a single accept pattern.
type Rule struct {
	// Pattern is the trimmed pattern as configured (".png", "image/*").
	Pattern string

	// Kind is derived from Pattern by ParseRule.
	Kind Kind
}

// ParseRule classifies a single pattern. Surrounding whitespace is trimmed.
func ParseRule(pattern string) Rule {
	p := strings.TrimSpace(pattern)
	switch {
	case strings.HasPrefix(p, "."):
		return Rule{Pattern: p, Kind: KindExtension}
	case strings.Contains(p, "*"):
		return Rule{Pattern: p, Kind: KindWildcard}
	default:
		return Rule{Pattern: p, Kind: KindMIME}
	}
}

// MatchesName reports whether an extension rule matches the given file name.
// Rules of other kinds never match a name.
func (r Rule) MatchesName(name string) bool {
	if r.Kind != KindExtension {
		return false
	}
	ext := Extension(name)
	return ext != "" && ext == r.Pattern[1:]
}

// MatchesType reports whether a MIME or wildcard rule matches the given
// MIME type. An empty type never matches.
func (r Rule) MatchesType(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	switch r.Kind {
	case KindMIME:
		return mimeType == r.Pattern
	case KindWildcard:
		return primary(mimeType) == primary(r.Pattern)
	default:
		return false
	}
}

// List is an ordered, immutable set of rules. The zero value accepts
// everything.
type List struct {
	rules []Rule
	raw   string
}

// Parse splits a comma-separated accept string into a List. Empty entries
// are skipped, so "" and " , " both produce an accept-all list.
func Parse(s string) List {
	var rules []Rule
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		rules = append(rules, ParseRule(part))
	}
	return List{rules: rules, raw: s}
}

// Rules returns a copy of the rules in configuration order.
func (l List) Rules() []Rule {
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Len returns the number of rules.
func (l List) Len() int { return len(l.rules) }

// AcceptsAll reports whether the list has no rules.
func (l List) AcceptsAll() bool { return len(l.rules) == 0 }

// String returns the accept string the list was parsed from.
func (l List) String() string { return l.raw }

// Accepts reports whether a file with the given name and declared MIME type
// passes the list. It is the union of MatchesName and MatchesType.
func (l List) Accepts(name, mimeType string) bool {
	return l.MatchesName(name) || l.MatchesType(mimeType)
}

// MatchesName reports whether any extension rule matches name.
// An empty list matches.
func (l List) MatchesName(name string) bool {
	if l.AcceptsAll() {
		return true
	}
	for _, r := range l.rules {
		if r.MatchesName(name) {
			return true
		}
	}
	return false
}

// MatchesType reports whether any MIME or wildcard rule matches mimeType.
// An empty list matches.
func (l List) MatchesType(mimeType string) bool {
	if l.AcceptsAll() {
		return true
	}
	for _, r := range l.rules {
		if r.MatchesType(mimeType) {
			return true
		}
	}
	return false
}

// Extension returns the part of name after its last dot, or "" when name
// has no dot.
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

func primary(mimeType string) string {
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[:i]
	}
	return mimeType
}
