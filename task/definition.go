package task

import "context"

// Handler processes decoded params of type P.
type Handler[P any] func(ctx context.Context, env *Env, params P) (*Result, error)

// Definition is a typed handler registration.
type Definition[P any] struct {
	// Type is the task type this definition handles.
	Type Type

	// NeedsBrowser makes the scheduler provision the shared browser and
	// pass it in Env.Browser.
	NeedsBrowser bool

	// MaxVersion is the newest params version the handler understands.
	// Zero disables the check.
	MaxVersion int

	Handler Handler[P]
}

// DefinitionOption configures a Definition.
type DefinitionOption func(*definitionOptions)

type definitionOptions struct {
	maxVersion int
}

// WithMaxVersion sets the newest params version the handler accepts.
func WithMaxVersion(v int) DefinitionOption {
	return func(o *definitionOptions) { o.maxVersion = v }
}

// NewDefinition creates a typed definition. Params are checked against
// version 1 unless WithMaxVersion says otherwise.
func NewDefinition[P any](t Type, needsBrowser bool, h Handler[P], opts ...DefinitionOption) *Definition[P] {
	o := definitionOptions{maxVersion: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return &Definition[P]{
		Type:         t,
		NeedsBrowser: needsBrowser,
		MaxVersion:   o.maxVersion,
		Handler:      h,
	}
}
