package ottoneu

import "errors"

// ErrPositionNotFound is returned when the search page has no filter link
// for the requested position.
var ErrPositionNotFound = errors.New("ottoneu: position filter not found")
