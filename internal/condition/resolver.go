package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownProperty is returned by resolvers for names they do not know.
var ErrUnknownProperty = errors.New("unknown property")

// PropertyKey is the native identifier of a property: a format id and a
// property id within that format.
type PropertyKey struct {
	FormatID uuid.UUID
	PID      uint32
}

// IsZero reports whether k is the unresolved sentinel.
func (k PropertyKey) IsZero() bool {
	return k.FormatID == uuid.Nil && k.PID == 0
}

func (k PropertyKey) String() string {
	return fmt.Sprintf("{%s} %d", strings.ToUpper(k.FormatID.String()), k.PID)
}

// Resolver maps canonical property names to native keys.
type Resolver interface {
	Resolve(canonicalName string) (PropertyKey, error)
}

// valueKind is how a property's values compare.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindTime
)

// property describes one known property.
type property struct {
	canonical string
	field     string // key in models.Entry.Properties and the index table
	kind      valueKind
	key       PropertyKey
}

var (
	fmtidStorage = uuid.MustParse("b725f130-47ef-101a-a5f1-02608c9eebac")
	fmtidSummary = uuid.MustParse("28636aa6-953d-11d2-b5d6-00c04fd918d0")
	fmtidName    = uuid.MustParse("41cf5ae0-f75a-4806-bd87-59c7d9248eb9")
)

var properties = []property{
	{"System.ItemNameDisplay", "name", kindString, PropertyKey{fmtidStorage, 10}},
	{"System.Size", "size", kindInt, PropertyKey{fmtidStorage, 12}},
	{"System.FileAttributes", "attributes", kindInt, PropertyKey{fmtidStorage, 13}},
	{"System.DateModified", "modified", kindTime, PropertyKey{fmtidStorage, 14}},
	{"System.ItemType", "type", kindString, PropertyKey{fmtidSummary, 11}},
	{"System.FileName", "filename", kindString, PropertyKey{fmtidName, 100}},
}

// aliases are the short names accepted by ParseExpr.
var aliases = map[string]string{
	"name":       "System.ItemNameDisplay",
	"size":       "System.Size",
	"attributes": "System.FileAttributes",
	"attr":       "System.FileAttributes",
	"modified":   "System.DateModified",
	"date":       "System.DateModified",
	"type":       "System.ItemType",
	"ext":        "System.ItemType",
	"filename":   "System.FileName",
}

// SystemResolver resolves the built-in property set. Names match
// case-insensitively.
type SystemResolver struct{}

// System is the default resolver.
var System Resolver = SystemResolver{}

// Resolve implements Resolver.
func (SystemResolver) Resolve(name string) (PropertyKey, error) {
	if p, ok := lookupName(name); ok {
		return p.key, nil
	}
	return PropertyKey{}, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
}

func lookupName(name string) (property, bool) {
	for _, p := range properties {
		if strings.EqualFold(p.canonical, name) {
			return p, true
		}
	}
	return property{}, false
}

func lookupKey(k PropertyKey) (property, bool) {
	if k.IsZero() {
		return property{}, false
	}
	for _, p := range properties {
		if p.key == k {
			return p, true
		}
	}
	return property{}, false
}

// CanonicalName expands a short alias such as "size" to its canonical
// property name. Canonical names are returned unchanged.
func CanonicalName(name string) (string, bool) {
	if c, ok := aliases[strings.ToLower(name)]; ok {
		return c, true
	}
	if p, ok := lookupName(name); ok {
		return p.canonical, true
	}
	return "", false
}
