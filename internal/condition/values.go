package condition

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrUnsupported is returned for operations a property type cannot express.
var ErrUnsupported = errors.New("unsupported operation")

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

// parseValue converts a leaf value to the comparison type of p. Strings are
// lower-cased; matching is case-insensitive.
func parseValue(p property, op Operation, s string) (any, error) {
	switch p.kind {
	case kindInt:
		if op > OpGreaterThanOrEqual {
			return nil, fmt.Errorf("%s %s: %w", p.canonical, op, ErrUnsupported)
		}
		if p.field == "size" {
			n, err := humanize.ParseBytes(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.canonical, err)
			}
			return int64(n), nil
		}
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.canonical, err)
		}
		return n, nil

	case kindTime:
		if op > OpGreaterThanOrEqual {
			return nil, fmt.Errorf("%s %s: %w", p.canonical, op, ErrUnsupported)
		}
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%s: unrecognised time %q", p.canonical, s)
	}
	return strings.ToLower(s), nil
}

// globPattern returns an anchored regular expression for a * and ? pattern.
func globPattern(glob string) string {
	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	return sb.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern converts a * and ? pattern to a LIKE pattern.
func likePattern(glob string) string {
	escaped := likeEscaper.Replace(glob)
	return strings.NewReplacer("*", "%", "?", "_").Replace(escaped)
}
