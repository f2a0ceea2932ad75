// Package obs contains observability utilities such as logging and metrics.
package obs

import (
	"go.uber.org/zap"
)

// NewLogger returns a JSON logger at info level for prod and a console
// logger at debug level otherwise.
func NewLogger(prod bool) (*zap.Logger, error) {
	if prod {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
