package keypath

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tag is the one-character prefix of a declared path that selects the kind of
// callback following it in a declaration list.
type Tag byte

const (
	MessageTag Tag = ':' // a method name follows
	ClosureTag Tag = '?' // a closure follows
)

func (t Tag) String() string {
	switch t {
	case MessageTag:
		return "message"
	case ClosureTag:
		return "closure"
	default:
		return fmt.Sprintf("Tag(%q)", byte(t))
	}
}

// SplitTag strips the tag from a declared path and validates the remaining
// compound path.
func SplitTag(tagged string) (Tag, string, error) {
	if len(tagged) < 2 {
		return 0, "", errors.Wrapf(ErrMalformedDeclaration, "declared path %q is too short", tagged)
	}
	tag := Tag(tagged[0])
	if tag != MessageTag && tag != ClosureTag {
		return 0, "", errors.Wrapf(ErrMalformedDeclaration, "unknown tag %q in %q", tagged[0], tagged)
	}
	compound := tagged[1:]
	if _, err := Expand(compound); err != nil {
		return 0, "", err
	}
	return tag, compound, nil
}
