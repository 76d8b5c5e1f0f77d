package czimeta

import "github.com/prometheus/client_golang/prometheus"

// Fallback lookup outcomes.
const (
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// Metrics counts default substitutions and stage position fallback lookups.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DefaultsSubstituted *prometheus.CounterVec
	FallbackLookups     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		DefaultsSubstituted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "czimeta",
			Name:      "defaults_substituted_total",
			Help:      "Metadata fields replaced by their default value.",
		}, []string{"field"}),
		FallbackLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "czimeta",
			Name:      "fallback_lookups_total",
			Help:      "Stage position lookups in the positional-record source, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.DefaultsSubstituted, m.FallbackLookups} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) defaultSubstituted(f Field) {
	if m == nil {
		return
	}
	m.DefaultsSubstituted.WithLabelValues(string(f)).Inc()
}

func (m *Metrics) fallbackLookup(outcome string) {
	if m == nil {
		return
	}
	m.FallbackLookups.WithLabelValues(outcome).Inc()
}
