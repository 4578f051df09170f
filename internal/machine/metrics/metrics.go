package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MintsTotal       *prometheus.CounterVec
	MintDenialsTotal *prometheus.CounterVec
	ReclaimsTotal    prometheus.Counter
	AllowListAdds    prometheus.Counter
}

// New registers the instruments on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the instruments on the given registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MintsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gumball_mints_total",
			Help: "Successful issuances by gate mode",
		}, []string{"gate"}),
		MintDenialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gumball_mint_denials_total",
			Help: "Denied issuances by reason code",
		}, []string{"reason"}),
		ReclaimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gumball_reclaims_total",
			Help: "Machine records reclaimed after exhausting supply",
		}),
		AllowListAdds: factory.NewCounter(prometheus.CounterOpts{
			Name: "gumball_allowlist_entries_added_total",
			Help: "Allow-list entries appended",
		}),
	}
}

func (m *Metrics) IncMint(gate string) {
	m.MintsTotal.WithLabelValues(gate).Inc()
}

func (m *Metrics) IncDenial(reason string) {
	m.MintDenialsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncReclaim() {
	m.ReclaimsTotal.Inc()
}

func (m *Metrics) IncAllowListAdd() {
	m.AllowListAdds.Inc()
}
