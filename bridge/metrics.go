package bridge

import "github.com/prometheus/client_golang/prometheus"

// metrics are the bridge's Prometheus collectors. The counters always
// exist; they are only exported when a Registerer was configured.
type metrics struct {
	framesPublished prometheus.Counter
	framesDropped   prometheus.Counter
	inputDropped    prometheus.Counter
	browsersOpened  prometheus.Counter
	browsersClosed  *prometheus.CounterVec
	polls           prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		framesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbridge",
			Subsystem: "frames",
			Name:      "published_total",
			Help:      "Rendered frames committed to a frame relay.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbridge",
			Subsystem: "frames",
			Name:      "dropped_total",
			Help:      "Frame deliveries discarded (malformed or after close).",
		}),
		inputDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbridge",
			Subsystem: "input",
			Name:      "dropped_total",
			Help:      "Input events dropped against closing or closed views.",
		}),
		browsersOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbridge",
			Subsystem: "browsers",
			Name:      "opened_total",
			Help:      "Browsing contexts opened.",
		}),
		browsersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browserbridge",
			Subsystem: "browsers",
			Name:      "closed_total",
			Help:      "Browsing contexts closed, by reason.",
		}, []string{"reason"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbridge",
			Subsystem: "frames",
			Name:      "polls_total",
			Help:      "Poll calls served, frame or not.",
		}),
	}

	if reg == nil {
		return m
	}
	m.framesPublished = registerCounter(reg, m.framesPublished)
	m.framesDropped = registerCounter(reg, m.framesDropped)
	m.inputDropped = registerCounter(reg, m.inputDropped)
	m.browsersOpened = registerCounter(reg, m.browsersOpened)
	m.browsersClosed = registerCounterVec(reg, m.browsersClosed)
	m.polls = registerCounter(reg, m.polls)
	return m
}

// registerCounter attaches c to reg, reusing the registry's existing
// collector when one with the same fully-qualified name is already present.
// A host that shuts the bridge down and rebuilds it with the same registry
// must not trip duplicate registration.
func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}
