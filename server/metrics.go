package server

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courserush/round"
)

// Metrics 运行期指标：prometheus 采集 + 原子计数快照（用于 /api/status）
type Metrics struct {
	reg *prometheus.Registry

	phase       prometheus.Gauge
	rounds      prometheus.Counter
	finishes    *prometheus.CounterVec
	votes       prometheus.Counter
	builds      *prometheus.CounterVec
	elements    prometheus.Gauge
	dropped     prometheus.Counter
	fallbacks   *prometheus.CounterVec
	requests    *prometheus.CounterVec
	connections prometheus.Gauge

	RoundsStarted    int64
	FinishesRecorded int64
	VotesAccepted    int64
	RequestsAccepted int64
	RateLimited      int64
	Rejected         int64
	SendDropped      int64
	ContactsDropped  int64
	StoreFallbacks   int64
	Connections      int64
}

// NewMetrics loops 返回当前运行中的元素循环数，可为 nil
func NewMetrics(loops func() float64) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courserush_phase", Help: "Current round phase (0=lobby .. 5=cleanup).",
		}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courserush_rounds_total", Help: "Courses built.",
		}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courserush_finishes_total", Help: "Recorded finishes.",
		}, []string{"place"}),
		votes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courserush_votes_total", Help: "Accepted votes.",
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courserush_builds_total", Help: "Courses built by type.",
		}, []string{"course"}),
		elements: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courserush_course_elements", Help: "Elements in the current course.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courserush_contacts_dropped_total", Help: "Contact events dropped because the queue was full.",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courserush_store_fallbacks_total", Help: "Store calls served from cache after a backend failure.",
		}, []string{"store", "op"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courserush_requests_total", Help: "Inbound client requests by type and result.",
		}, []string{"type", "result"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courserush_connections", Help: "Open websocket connections.",
		}),
	}
	m.reg.MustRegister(m.phase, m.rounds, m.finishes, m.votes, m.builds, m.elements,
		m.dropped, m.fallbacks, m.requests, m.connections)
	if loops != nil {
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "courserush_element_loops", Help: "Running element motion loops.",
		}, loops))
	}
	return m
}

// Handler /metrics 输出
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// round.Observer

func (m *Metrics) PhaseEntered(p round.Phase) {
	m.phase.Set(float64(p))
	if p == round.PhaseLobby {
		m.elements.Set(0)
	}
}

func (m *Metrics) FinishRecorded(place int) {
	atomic.AddInt64(&m.FinishesRecorded, 1)
	label := "other"
	if place <= 3 {
		label = strconv.Itoa(place)
	}
	m.finishes.WithLabelValues(label).Inc()
}

func (m *Metrics) VoteAccepted() {
	atomic.AddInt64(&m.VotesAccepted, 1)
	m.votes.Inc()
}

func (m *Metrics) CourseBuilt(courseType string, elements int) {
	atomic.AddInt64(&m.RoundsStarted, 1)
	m.rounds.Inc()
	m.builds.WithLabelValues(courseType).Inc()
	m.elements.Set(float64(elements))
}

func (m *Metrics) EventDropped() {
	atomic.AddInt64(&m.ContactsDropped, 1)
	m.dropped.Inc()
}

// StoreDegraded 作为 store.Options.OnDegraded
func (m *Metrics) StoreDegraded(store, op string) {
	atomic.AddInt64(&m.StoreFallbacks, 1)
	m.fallbacks.WithLabelValues(store, op).Inc()
}

func (m *Metrics) IncAccepted(typ string) {
	atomic.AddInt64(&m.RequestsAccepted, 1)
	m.requests.WithLabelValues(typ, "ok").Inc()
}

func (m *Metrics) IncRejected(typ string) {
	atomic.AddInt64(&m.Rejected, 1)
	m.requests.WithLabelValues(typ, "rejected").Inc()
}

func (m *Metrics) IncRateLimited() {
	atomic.AddInt64(&m.RateLimited, 1)
	m.requests.WithLabelValues("any", "rate_limited").Inc()
}

func (m *Metrics) IncSendDropped() { atomic.AddInt64(&m.SendDropped, 1) }

func (m *Metrics) ConnOpened() {
	atomic.AddInt64(&m.Connections, 1)
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	atomic.AddInt64(&m.Connections, -1)
	m.connections.Dec()
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"rounds_started":    atomic.LoadInt64(&m.RoundsStarted),
		"finishes_recorded": atomic.LoadInt64(&m.FinishesRecorded),
		"votes_accepted":    atomic.LoadInt64(&m.VotesAccepted),
		"requests_accepted": atomic.LoadInt64(&m.RequestsAccepted),
		"rate_limited":      atomic.LoadInt64(&m.RateLimited),
		"rejected":          atomic.LoadInt64(&m.Rejected),
		"send_dropped":      atomic.LoadInt64(&m.SendDropped),
		"contacts_dropped":  atomic.LoadInt64(&m.ContactsDropped),
		"store_fallbacks":   atomic.LoadInt64(&m.StoreFallbacks),
		"connections":       atomic.LoadInt64(&m.Connections),
	}
}
