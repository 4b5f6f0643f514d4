package paging

import (
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// limitOverride is an override slot for an optional limit. The outer layer
// records whether the override exists, the inner one whether it caps.
type limitOverride = Optional[Optional[int]]

// Entity carries the pagination overrides of one entity type. Reads fall
// back to the registry's Config for every slot that was never set.
//
// Entity does no locking; callers that share it across goroutines must
// serialise writes.
type Entity struct {
	name string
	cfg  *Config
	dep  deprecator

	defaultPerPage Optional[int]
	maxPerPage     limitOverride
	maxPages       limitOverride
}

// Overrides reports which slots of an Entity are explicitly set.
type Overrides struct {
	DefaultPerPage bool
	MaxPerPage     bool
	MaxPages       bool
}

// Name returns the entity type identifier.
func (e *Entity) Name() string {
	return e.name
}

// SetDefaultPerPage overrides the page size for this entity type.
func (e *Entity) SetDefaultPerPage(v int) {
	e.defaultPerPage = Some(v)
}

// DefaultPerPage returns the override if set, otherwise the global value.
func (e *Entity) DefaultPerPage() int {
	if v, ok := e.defaultPerPage.Get(); ok {
		return v
	}
	return e.cfg.DefaultPerPage
}

// ClearDefaultPerPage drops the override so reads fall back again.
func (e *Entity) ClearDefaultPerPage() {
	e.defaultPerPage = None[int]()
}

// SetMaxPerPage overrides the page size cap. None removes the cap for this
// entity type even when a global cap exists.
func (e *Entity) SetMaxPerPage(v Optional[int]) {
	e.maxPerPage = Some(v)
}

// MaxPerPage returns the override if set, otherwise the global value.
func (e *Entity) MaxPerPage() Optional[int] {
	return e.maxPerPage.OrElse(e.cfg.MaxPerPage)
}

// ClearMaxPerPage drops the page size cap override.
func (e *Entity) ClearMaxPerPage() {
	e.maxPerPage = None[Optional[int]]()
}

// SetMaxPages overrides the page count cap.
func (e *Entity) SetMaxPages(v Optional[int]) {
	e.maxPages = Some(v)
}

// MaxPages returns the override if set, otherwise the global value.
func (e *Entity) MaxPages() Optional[int] {
	return e.maxPages.OrElse(e.cfg.MaxPages)
}

// ClearMaxPages drops the page count cap override.
func (e *Entity) ClearMaxPages() {
	e.maxPages = None[Optional[int]]()
}

// SetMaxPagesPer is the old name of SetMaxPages.
//
// Deprecated: use SetMaxPages. Depending on the registry's deprecation
// behavior the call is logged, passed through silently, or rejected with
// ErrDeprecated without storing v.
func (e *Entity) SetMaxPagesPer(v Optional[int]) error {
	if err := e.dep.report(e.name, "max_pages_per", "max_pages"); err != nil {
		return err
	}
	e.SetMaxPages(v)
	return nil
}

// Overrides reports which slots are explicitly set.
func (e *Entity) Overrides() Overrides {
	return Overrides{
		DefaultPerPage: e.defaultPerPage.IsSet(),
		MaxPerPage:     e.maxPerPage.IsSet(),
		MaxPages:       e.maxPages.IsSet(),
	}
}

// Settings resolves every setting for this entity type.
func (e *Entity) Settings() Settings {
	s := e.cfg.Settings()
	s.DefaultPerPage = e.DefaultPerPage()
	s.MaxPerPage = e.MaxPerPage()
	s.MaxPages = e.MaxPages()
	return s
}

// Registry maps entity type identifiers to their overrides.
// Like Entity, it does no locking.
type Registry struct {
	cfg      *Config
	dep      deprecator
	entities map[string]*Entity
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger that receives deprecation warnings. Without it
// warnings go to the process logger, zap.L().
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.dep.logger = logger
		}
	}
}

// WithDeprecationBehavior sets how deprecated operations are reported.
func WithDeprecationBehavior(b DeprecationBehavior) RegistryOption {
	return func(r *Registry) {
		r.dep.behavior = b
	}
}

// NewRegistry creates a Registry falling back to cfg. A nil cfg selects the
// process-wide Config.
func NewRegistry(cfg *Config, opts ...RegistryOption) *Registry {
	if cfg == nil {
		cfg = Global()
	}
	r := &Registry{
		cfg:      cfg,
		dep:      deprecator{logger: zap.L(), behavior: DeprecationLog},
		entities: make(map[string]*Entity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the Config used for fallback reads.
func (r *Registry) Config() *Config {
	return r.cfg
}

// Entity returns the overrides for name, registering them on first use.
func (r *Registry) Entity(name string) *Entity {
	if e, ok := r.entities[name]; ok {
		return e
	}
	e := &Entity{name: name, cfg: r.cfg, dep: r.dep}
	r.entities[name] = e
	return e
}

// Lookup returns the overrides for name without registering them.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// SetMaxPagesPer applies the deprecated alias to name. The use is reported
// before anything is registered, so a rejected call leaves the registry as
// it was.
//
// Deprecated: use Entity(name).SetMaxPages.
func (r *Registry) SetMaxPagesPer(name string, v Optional[int]) error {
	if err := r.dep.report(name, "max_pages_per", "max_pages"); err != nil {
		return err
	}
	r.Entity(name).SetMaxPages(v)
	return nil
}

// Resolve returns the settings for name. Unknown names resolve to the global
// settings and are not registered.
func (r *Registry) Resolve(name string) Settings {
	if e, ok := r.entities[name]; ok {
		return e.Settings()
	}
	return r.cfg.Settings()
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntityName derives an identifier from the Go type T, so a model type can be
// used as the registry key: EntityName[*Article]() == "article".
func EntityName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	return strings.ToLower(name)
}
