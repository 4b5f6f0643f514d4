// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. Besides the HTTP settings it carries the
// baseline pagination settings and the per-entity overrides that are applied
// to the paging package once at startup.
package config
