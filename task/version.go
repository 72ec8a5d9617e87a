package task

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned when job params were written by a newer
// producer than the handler understands. Retrying cannot help, so the
// scheduler fails such jobs immediately.
var ErrUnsupportedVersion = errors.New("task: unsupported params version")

// ErrInvalidParams is returned for params that cannot be decoded or are
// missing a required field. Like ErrUnsupportedVersion it is permanent.
var ErrInvalidParams = errors.New("task: invalid params")

// IsPermanent reports whether err can never succeed on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedVersion) || errors.Is(err, ErrInvalidParams)
}

// Versioned is embedded in params structs to carry the schema version.
// A missing "v" decodes as version 0 and is treated as version 1.
type Versioned struct {
	V int `json:"v,omitempty"`
}

// Version returns the params schema version.
func (v Versioned) Version() int {
	if v.V == 0 {
		return 1
	}
	return v.V
}

type versioner interface{ Version() int }

// checkVersion rejects params newer than maxVersion.
func checkVersion(t Type, params any, maxVersion int) error {
	vp, ok := params.(versioner)
	if !ok || maxVersion <= 0 {
		return nil
	}
	if got := vp.Version(); got > maxVersion {
		return fmt.Errorf("%w: %s params v%d, handler supports up to v%d", ErrUnsupportedVersion, t, got, maxVersion)
	}
	return nil
}

// decodeParams decodes raw into P. Empty params decode as the zero value.
func decodeParams[P any](t Type, raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: decode %s params: %v", ErrInvalidParams, t, err)
	}
	return p, nil
}
