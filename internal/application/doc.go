// Package application provides application initialization and dependency wiring.
// It applies the startup pagination configuration, registers entity overrides,
// and creates the handler, router and HTTP server, keeping the main package
// focused on CLI parsing and orchestration.
package application
