package paging

// ParamSource is the name of the query parameter carrying the page number.
// It is either a fixed name or a resolver evaluated on every read, which
// lets the name vary per request without reconfiguring.
type ParamSource struct {
	name    string
	resolve func() string
}

// FixedParam returns a source that always yields name.
func FixedParam(name string) ParamSource {
	return ParamSource{name: name}
}

// ParamFunc returns a source that calls fn each time it is resolved.
// A nil fn resolves to the empty string.
func ParamFunc(fn func() string) ParamSource {
	return ParamSource{resolve: fn}
}

// Resolve returns the current parameter name.
func (p ParamSource) Resolve() string {
	if p.resolve != nil {
		return p.resolve()
	}
	return p.name
}

// IsDeferred reports whether the name is computed at read time.
func (p ParamSource) IsDeferred() bool {
	return p.resolve != nil
}
