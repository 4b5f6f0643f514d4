package paging

import "sync"

const (
	defaultPerPage    = 25
	defaultWindow     = 4
	defaultMethodName = "page"
	defaultParamName  = "page"
)

// Field names a global setting.
type Field string

const (
	FieldDefaultPerPage    Field = "default_per_page"
	FieldMaxPerPage        Field = "max_per_page"
	FieldWindow            Field = "window"
	FieldOuterWindow       Field = "outer_window"
	FieldLeft              Field = "left"
	FieldRight             Field = "right"
	FieldPageMethodName    Field = "page_method_name"
	FieldParamName         Field = "param_name"
	FieldMaxPages          Field = "max_pages"
	FieldParamsOnFirstPage Field = "params_on_first_page"
)

var fields = []Field{
	FieldDefaultPerPage,
	FieldMaxPerPage,
	FieldWindow,
	FieldOuterWindow,
	FieldLeft,
	FieldRight,
	FieldPageMethodName,
	FieldParamName,
	FieldMaxPages,
	FieldParamsOnFirstPage,
}

// Fields returns every setting name in declaration order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Config holds the baseline pagination settings. Values are not validated;
// consumers decide what to do with out-of-range numbers.
type Config struct {
	DefaultPerPage    int
	MaxPerPage        Optional[int]
	Window            int
	OuterWindow       int
	Left              int
	Right             int
	PageMethodName    string
	ParamName         ParamSource
	MaxPages          Optional[int]
	ParamsOnFirstPage bool
}

// Settings is a resolved view of every pagination setting.
type Settings struct {
	DefaultPerPage    int
	MaxPerPage        Optional[int]
	MaxPages          Optional[int]
	Window            int
	OuterWindow       int
	Left              int
	Right             int
	PageMethodName    string
	ParamName         string
	ParamsOnFirstPage bool
}

// New returns a Config populated with the defaults.
func New() *Config {
	return &Config{
		DefaultPerPage: defaultPerPage,
		Window:         defaultWindow,
		PageMethodName: defaultMethodName,
		ParamName:      FixedParam(defaultParamName),
	}
}

var (
	globalOnce sync.Once
	global     *Config
)

// Global returns the process-wide Config, creating it on first use.
func Global() *Config {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// Configure applies fn to the process-wide Config.
func Configure(fn func(*Config)) {
	Global().Configure(fn)
}

// Configure applies fn to c. It is meant to run once at startup, before c is
// shared with readers.
func (c *Config) Configure(fn func(*Config)) {
	if fn != nil {
		fn(c)
	}
}

// PageParameterName resolves ParamName. Deferred sources are evaluated on
// every call.
func (c *Config) PageParameterName() string {
	return c.ParamName.Resolve()
}

// Get returns the current value of the named setting. The parameter name is
// returned resolved.
func (c *Config) Get(field Field) (any, bool) {
	switch field {
	case FieldDefaultPerPage:
		return c.DefaultPerPage, true
	case FieldMaxPerPage:
		return c.MaxPerPage, true
	case FieldWindow:
		return c.Window, true
	case FieldOuterWindow:
		return c.OuterWindow, true
	case FieldLeft:
		return c.Left, true
	case FieldRight:
		return c.Right, true
	case FieldPageMethodName:
		return c.PageMethodName, true
	case FieldParamName:
		return c.PageParameterName(), true
	case FieldMaxPages:
		return c.MaxPages, true
	case FieldParamsOnFirstPage:
		return c.ParamsOnFirstPage, true
	default:
		return nil, false
	}
}

// Settings resolves every global setting.
func (c *Config) Settings() Settings {
	return Settings{
		DefaultPerPage:    c.DefaultPerPage,
		MaxPerPage:        c.MaxPerPage,
		MaxPages:          c.MaxPages,
		Window:            c.Window,
		OuterWindow:       c.OuterWindow,
		Left:              c.Left,
		Right:             c.Right,
		PageMethodName:    c.PageMethodName,
		ParamName:         c.PageParameterName(),
		ParamsOnFirstPage: c.ParamsOnFirstPage,
	}
}

// Clone returns a shallow copy of c. A deferred parameter name stays
// deferred in the copy.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}
