package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/eugenenazirov/pagecascade/internal/paging"
)

// Apply copies the settings into c. It has the shape expected by
// paging.Configure.
func (p Pagination) Apply(c *paging.Config) {
	c.DefaultPerPage = p.DefaultPerPage
	c.MaxPerPage = p.MaxPerPage
	c.Window = p.Window
	c.OuterWindow = p.OuterWindow
	c.Left = p.Left
	c.Right = p.Right
	c.PageMethodName = p.PageMethodName
	c.ParamName = p.paramSource()
	c.MaxPages = p.MaxPages
	c.ParamsOnFirstPage = p.ParamsOnFirstPage
}

func (p Pagination) paramSource() paging.ParamSource {
	if p.ParamEnv == "" {
		return paging.FixedParam(p.ParamName)
	}
	variable, fallback := p.ParamEnv, p.ParamName
	return paging.ParamFunc(func() string {
		if v := strings.TrimSpace(os.Getenv(variable)); v != "" {
			return v
		}
		return fallback
	})
}

// DeprecationBehavior returns the parsed deprecation mode. Load has already
// rejected unknown names, so the fallback only matters for hand-built values.
func (c Config) DeprecationBehavior() paging.DeprecationBehavior {
	b, err := paging.ParseDeprecationBehavior(c.Deprecation)
	if err != nil {
		return paging.DeprecationLog
	}
	return b
}

// ApplyEntities registers the configured entity overrides in reg, in name
// order. Legacy max_pages_per entries go through the deprecated setter.
func (c Config) ApplyEntities(reg *paging.Registry) error {
	names := make([]string, 0, len(c.Entities))
	for name := range c.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		o := c.Entities[name]
		e := reg.Entity(name)
		if o.DefaultPerPage != nil {
			e.SetDefaultPerPage(*o.DefaultPerPage)
		}
		if o.MaxPerPage != nil {
			e.SetMaxPerPage(*o.MaxPerPage)
		}
		if o.MaxPagesPer != nil {
			if err := e.SetMaxPagesPer(*o.MaxPagesPer); err != nil {
				return fmt.Errorf("entity %q: %w", name, err)
			}
		}
		if o.MaxPages != nil {
			e.SetMaxPages(*o.MaxPages)
		}
	}
	return nil
}
