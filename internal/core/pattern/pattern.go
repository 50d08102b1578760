// Package pattern compiles AMQP-style binding keys and matches topics against them.
//
// A binding key is a dot separated list of segments. "*" matches exactly one
// topic segment, "#" matches zero or more segments and every other segment
// matches its own text, ignoring case. Any string is a legal binding key.
package pattern

import (
	"regexp"
	"strings"
)

const (
	// Separator delimits topic and binding key segments.
	Separator = "."
	// SingleWildcard matches exactly one segment.
	SingleWildcard = "*"
	// MultiWildcard matches zero or more segments.
	MultiWildcard = "#"
)

// Pattern is a compiled binding key.
type Pattern struct {
	key        string
	normalized string
	segments   []string
	universal  bool
	re         *regexp.Regexp
}

// Compile builds a Pattern for the binding key. It never fails: degenerate
// keys compile to patterns that match nothing.
func Compile(bindingKey string) *Pattern {
	p := &Pattern{key: bindingKey}
	if bindingKey == "" {
		return p
	}

	p.segments = normalizeSegments(bindingKey)
	p.normalized = strings.Join(p.segments, Separator)

	switch {
	case len(p.segments) == 0:
	case p.normalized == MultiWildcard:
		p.universal = true
	default:
		p.re = regexp.MustCompile(buildExpr(p.segments))
	}
	return p
}

// Key returns the binding key the pattern was compiled from.
func (p *Pattern) Key() string {
	return p.key
}

// Normalized returns the normalized binding key.
func (p *Pattern) Normalized() string {
	return p.normalized
}

// Segments returns a copy of the normalized segments.
func (p *Pattern) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Match reports whether topic is routed to this binding key.
func (p *Pattern) Match(topic string) bool {
	if p.key == "" || topic == "" {
		return false
	}
	// Verbatim topics match strictly, before normalization kicks in.
	if topic == p.key {
		return true
	}
	if p.universal {
		return true
	}
	if p.re == nil {
		return false
	}
	return p.re.MatchString(topic)
}

// Normalize collapses runs of separators, drops leading and trailing
// separators and folds consecutive "#" segments into one.
func Normalize(bindingKey string) string {
	return strings.Join(normalizeSegments(bindingKey), Separator)
}

func normalizeSegments(bindingKey string) []string {
	raw := strings.Split(bindingKey, Separator)
	segments := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg == "" {
			continue
		}
		if seg == MultiWildcard && len(segments) > 0 && segments[len(segments)-1] == MultiWildcard {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// buildExpr turns normalized segments into an anchored, case-insensitive
// expression. Segments never contain an empty string and "#" never repeats.
func buildExpr(segments []string) string {
	var b strings.Builder
	b.WriteString("(?i)^")

	wrote := false
	leadingHash := false
	for _, seg := range segments {
		if seg == MultiWildcard {
			if wrote {
				b.WriteString(`(?:\.[^.]+)*`)
			} else {
				leadingHash = true
			}
			continue
		}

		if wrote {
			b.WriteString(`\.`)
		} else if leadingHash {
			b.WriteString(`(?:[^.]+\.)*`)
		}

		if seg == SingleWildcard {
			b.WriteString(`[^.]+`)
		} else {
			b.WriteString(regexp.QuoteMeta(seg))
		}
		wrote = true
	}

	b.WriteString("$")
	return b.String()
}
