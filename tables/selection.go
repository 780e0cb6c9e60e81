package tables

import (
	"fmt"
	"strings"
)

// Relation is an embedded lookup such as "profiles(username, email)" or
// "profiles!user_violations_user_id_fkey(username)". Records are joined on
// their user_id column against the related record id.
type Relation struct {
	Table   string
	Hint    string
	Columns []string
}

// Selection describes which columns of a table to return. Nil Columns means
// every column.
type Selection struct {
	Columns   []string
	Relations []Relation
}

func (s Selection) All() bool { return s.Columns == nil }

// ParseSelection parses the column list of a query. An empty string selects
// every column.
func ParseSelection(raw string) (Selection, error) {
	var sel Selection
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return sel, nil
	}

	parts, err := splitTopLevel(raw)
	if err != nil {
		return Selection{}, err
	}
	star := false
	cols := []string{}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			return Selection{}, fmt.Errorf("empty column in selection %q", raw)
		case part == "*":
			star = true
		case strings.HasSuffix(part, ")"):
			rel, err := parseRelation(part)
			if err != nil {
				return Selection{}, err
			}
			sel.Relations = append(sel.Relations, rel)
		default:
			if !validIdent(part) {
				return Selection{}, fmt.Errorf("invalid column %q", part)
			}
			cols = append(cols, part)
		}
	}
	if !star {
		sel.Columns = cols
	}
	return sel, nil
}

func parseRelation(part string) (Relation, error) {
	open := strings.IndexByte(part, '(')
	if open <= 0 {
		return Relation{}, fmt.Errorf("invalid relation %q", part)
	}
	name := strings.TrimSpace(part[:open])
	var rel Relation
	if i := strings.IndexByte(name, '!'); i >= 0 {
		rel.Hint = strings.TrimSpace(name[i+1:])
		name = strings.TrimSpace(name[:i])
		if !validIdent(rel.Hint) {
			return Relation{}, fmt.Errorf("invalid relation hint %q", rel.Hint)
		}
	}
	if !validIdent(name) {
		return Relation{}, fmt.Errorf("invalid relation table %q", name)
	}
	rel.Table = name

	inner, err := ParseSelection(part[open+1 : len(part)-1])
	if err != nil {
		return Relation{}, err
	}
	if len(inner.Relations) > 0 {
		return Relation{}, fmt.Errorf("nested relation in %q", part)
	}
	rel.Columns = inner.Columns
	return rel, nil
}

func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	return append(parts, s[start:]), nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ValidColumn reports whether name can be used as a column name.
func ValidColumn(name string) bool { return validIdent(name) }
