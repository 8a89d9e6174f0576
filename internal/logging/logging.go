// Package logging constructs the zap logger used across the collector,
// the way cmd/billing/main.go constructs its own in the teacher repo.
package logging

import "go.uber.org/zap"

// New builds a production logger, or a development one (human-readable,
// debug-level) when debug is true.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
