package store

import (
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fruitsalade/folderview/internal/models"
)

// Column identifies a visible list column. Each column is also a sort key.
type Column int

const (
	ColumnName Column = iota
	ColumnSize
	ColumnType
	ColumnModified
	numColumns
)

var columnNames = [...]string{"name", "size", "type", "modified"}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// ParseColumn maps a column name to a Column.
func ParseColumn(s string) (Column, bool) {
	for i, n := range columnNames {
		if strings.EqualFold(s, n) {
			return Column(i), true
		}
	}
	return 0, false
}

// Columns returns all columns in display order.
func Columns() []Column {
	return []Column{ColumnName, ColumnSize, ColumnType, ColumnModified}
}

// Text renders the column cell for e.
func (c Column) Text(e *models.Entry) string {
	switch c {
	case ColumnName:
		return e.Name
	case ColumnSize:
		if e.IsDir {
			return ""
		}
		return humanize.IBytes(uint64(e.Size))
	case ColumnType:
		return e.Kind()
	case ColumnModified:
		if e.ModTime.IsZero() {
			return ""
		}
		return humanize.Time(e.ModTime)
	}
	return ""
}

// compare orders a and b by column c: folders first, then the column key,
// then natural name order, then identity so the order is total.
func compare(c Column, a, b *models.Entry) int {
	if a.IsDir != b.IsDir {
		if a.IsDir {
			return -1
		}
		return 1
	}

	switch c {
	case ColumnSize:
		if a.Size != b.Size {
			return cmp3(a.Size < b.Size)
		}
	case ColumnType:
		if ka, kb := a.Kind(), b.Kind(); ka != kb {
			return cmp3(ka < kb)
		}
	case ColumnModified:
		if !a.ModTime.Equal(b.ModTime) {
			return cmp3(a.ModTime.Before(b.ModTime))
		}
	}

	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return cmp3(naturalLess(la, lb))
	}
	if a.ID != b.ID {
		return cmp3(a.ID < b.ID)
	}
	return 0
}

func cmp3(less bool) int {
	if less {
		return -1
	}
	return 1
}

// naturalLess performs natural/numeric string comparison for sorting.
// "file2" < "file10" (unlike lexicographic "file10" < "file2").
// Equal numeric values with different leading zeros: the shorter run wins.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			numStartA := i
			for i < len(a) && a[i] == '0' {
				i++
			}
			valStartA := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			numLenA := i - numStartA
			valA := a[valStartA:i]

			numStartB := j
			for j < len(b) && b[j] == '0' {
				j++
			}
			valStartB := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			numLenB := j - numStartB
			valB := b[valStartB:j]

			if len(valA) != len(valB) {
				return len(valA) < len(valB)
			}
			if valA != valB {
				return valA < valB
			}
			if numLenA != numLenB {
				return numLenA < numLenB
			}
			continue
		}

		if a[i] != b[j] {
			return a[i] < b[j]
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
