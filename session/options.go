package session

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-synth/node"
)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	registry   *node.Registry
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer registers the session metrics on r instead of a private
// registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithRegistry replaces the standard node catalog. The registry must be
// sealed.
func WithRegistry(r *node.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}
