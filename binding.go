package stateformat

import (
	"context"
	"fmt"
	"strings"
)

// Marker is a placeholder DataFormat recording which scheme it is waiting
// for. Initializer replaces it with the live Formatter for that name.
type Marker struct {
	Name string
}

// Protect fails until the marker has been bound.
func (m Marker) Protect(context.Context, *Properties, string) (string, error) {
	return "", fmt.Errorf("%w: %q", ErrFormatNotBound, m.Name)
}

// Unprotect fails until the marker has been bound.
func (m Marker) Unprotect(context.Context, string, string) (*Properties, error) {
	return nil, fmt.Errorf("%w: %q", ErrFormatNotBound, m.Name)
}

// SchemeOptions is the per-scheme configuration a consumer reads once its
// named options are built.
//
// StateDataFormat is one of: nil (unconfigured), a Marker (pending binding), a
// *Formatter (bound), or a caller-supplied DataFormat left untouched.
type SchemeOptions struct {
	CallbackPath    string
	StateDataFormat DataFormat
}

// PostConfigurer runs after every Configure callback for a name.
type PostConfigurer interface {
	PostConfigure(name string, opts *SchemeOptions)
}

// Initializer binds markers to the formatters of one Service.
type Initializer struct {
	service *Service
}

// PostConfigure swaps a Marker for the named Formatter when the marker was
// created for exactly this name. Every other slot is left as is, which makes
// repeated runs a no-op.
func (i *Initializer) PostConfigure(name string, opts *SchemeOptions) {
	if i == nil || i.service == nil || opts == nil {
		return
	}

	switch current := opts.StateDataFormat.(type) {
	case Marker:
		if current.Name != name {
			return
		}
		f, err := i.service.Formatter(name)
		if err != nil {
			i.service.logger.Error("state data format binding failed", "scheme", name, "error", err)
			return
		}
		opts.StateDataFormat = f
		i.service.metrics.Inc(MetricFormatBound)
		i.service.audit.Emit(context.Background(), AuditEvent{
			Timestamp: i.service.now(),
			EventType: "state_bound",
			Scheme:    name,
			Success:   true,
		})
		i.service.logger.Info("state data format bound", "scheme", name)
	case *Marker:
		if current == nil || current.Name != name {
			return
		}
		opts.StateDataFormat = *current
		i.PostConfigure(name, opts)
	}
}

func validSchemeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return nil
}
