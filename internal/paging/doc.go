// Package paging resolves the effective pagination settings of an entity
// type. Reads walk a cascade: an override registered on the entity type, then
// the baseline Config. Config is normally the process-wide instance returned
// by Global and adjusted once at startup through Configure; tests construct
// isolated instances with New.
//
// Nothing in this package locks. The expected pattern is to configure once
// before serving and only read afterwards; callers that write concurrently
// must serialise access themselves.
package paging
