package keypath

import "errors"

var (
	ErrMalformedPath        = errors.New("keypath: malformed path")
	ErrMalformedDeclaration = errors.New("keypath: malformed declaration")
)
