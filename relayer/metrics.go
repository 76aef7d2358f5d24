package relayer

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics methods are safe to call on a nil receiver so components can run without metrics.
type PromMetrics struct {
	WalletBalance   *prometheus.GaugeVec
	Transitions     *prometheus.CounterVec
	AttestationPoll *prometheus.CounterVec
	BroadcastErrors *prometheus.CounterVec
	SchedulerPasses *prometheus.CounterVec
	StoreDegraded   prometheus.Gauge
}

// NewPromMetrics creates the collectors and registers them on reg.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	// labels
	var (
		walletLabels      = []string{"chain", "address"}
		transitionLabels  = []string{"direction", "status"}
		attestationLabels = []string{"domain", "result"}
		broadcastLabels   = []string{"chain", "domain"}
		schedulerLabels   = []string{"result"}
	)

	m := &PromMetrics{
		WalletBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctp_orchestrator_wallet_balance",
			Help: "The current native balance of a signer wallet in wei",
		}, walletLabels),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_transitions_total",
			Help: "Persisted transfer status transitions",
		}, transitionLabels),
		AttestationPoll: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_attestation_polls_total",
			Help: "Attestation lookups by outcome",
		}, attestationLabels),
		BroadcastErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_broadcast_errors_total",
			Help: "Vault manager submissions that failed after all retries",
		}, broadcastLabels),
		SchedulerPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_scheduler_passes_total",
			Help: "Resumption scheduler passes by outcome",
		}, schedulerLabels),
		StoreDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cctp_orchestrator_store_degraded",
			Help: "1 when transfers are kept in memory because the database is unavailable",
		}),
	}

	reg.MustRegister(
		m.WalletBalance,
		m.Transitions,
		m.AttestationPoll,
		m.BroadcastErrors,
		m.SchedulerPasses,
		m.StoreDegraded,
	)
	return m
}

func InitPromMetrics(port int16) *PromMetrics {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	// Expose /metrics HTTP endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), mux))
	}()

	return m
}

func (m *PromMetrics) SetWalletBalance(chain, address string, balance float64) {
	if m == nil {
		return
	}
	m.WalletBalance.WithLabelValues(chain, address).Set(balance)
}

func (m *PromMetrics) IncTransition(direction, status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(direction, status).Inc()
}

func (m *PromMetrics) IncAttestationPoll(domain, result string) {
	if m == nil {
		return
	}
	m.AttestationPoll.WithLabelValues(domain, result).Inc()
}

func (m *PromMetrics) IncBroadcastErrors(chain, domain string) {
	if m == nil {
		return
	}
	m.BroadcastErrors.WithLabelValues(chain, domain).Inc()
}

func (m *PromMetrics) IncSchedulerPass(result string) {
	if m == nil {
		return
	}
	m.SchedulerPasses.WithLabelValues(result).Inc()
}

func (m *PromMetrics) SetStoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.StoreDegraded.Set(1)
		return
	}
	m.StoreDegraded.Set(0)
}
