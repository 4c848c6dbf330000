// Package keypath parses the property path expressions used to declare
// observations.
//
// An atomic path is one or more keys separated by dots ("owner.name"). A key is
// an identifier, optionally prefixed by @ for collection operators
// ("items.@count"). A compound path joins atomic paths with a bar
// ("name|owner.name") and is observed as a group. The single asterisk "*" is
// reserved for removal and matches every path.
package keypath

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	Separator = "|"
	Wildcard  = "*"
)

var keyPattern = regexp.MustCompile(`^@?[A-Za-z_][A-Za-z0-9_]*$`)

// Expand splits a compound path into its atomic paths, preserving order.
// Duplicated segments are kept once, at their first position.
func Expand(compound string) ([]string, error) {
	if compound == "" {
		return nil, errors.Wrap(ErrMalformedPath, "empty path")
	}
	segments := strings.Split(compound, Separator)
	result := make([]string, 0, len(segments))
	seen := make(map[string]struct{}, len(segments))
	for i, segment := range segments {
		if err := Validate(segment); err != nil {
			return nil, errors.Wrapf(err, "segment %d of %q", i, compound)
		}
		if _, ok := seen[segment]; ok {
			continue
		}
		seen[segment] = struct{}{}
		result = append(result, segment)
	}
	return result, nil
}

// Validate reports whether atomic is a well formed atomic path.
func Validate(atomic string) error {
	if atomic == "" {
		return errors.Wrap(ErrMalformedPath, "empty segment")
	}
	for _, key := range strings.Split(atomic, ".") {
		if !keyPattern.MatchString(key) {
			return errors.Wrapf(ErrMalformedPath, "invalid key %q in %q", key, atomic)
		}
	}
	return nil
}

// IsWildcard reports whether path selects every observed path.
func IsWildcard(path string) bool {
	return path == Wildcard
}

// Join is the inverse of Expand.
func Join(paths ...string) string {
	return strings.Join(paths, Separator)
}
