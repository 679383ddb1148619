package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// inboundEvents counts normalized inbound events by transport and kind
	// (text or media).
	inboundEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_events_total",
			Help: "Inbound chat events accepted by the gateway.",
		},
		[]string{"transport", "kind"},
	)

	inboundDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbound_duplicates_total",
			Help: "Inbound events dropped as redeliveries.",
		},
	)

	// transitions counts session writes by the mode/step entered. Clearing a
	// session is recorded as mode "none".
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_transitions_total",
			Help: "Conversation state transitions by target mode and step.",
		},
		[]string{"mode", "step"},
	)

	mediaFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_flushes_total",
			Help: "Debounced media batches by outcome.",
		},
		[]string{"outcome"},
	)

	mediaItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_items_total",
			Help: "Individual media uploads by outcome.",
		},
		[]string{"outcome"},
	)

	customerQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_queries_total",
			Help: "Customer bot messages by classified action.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(inboundEvents, inboundDuplicates, transitions, mediaFlushes, mediaItems, customerQueries)
}

// RecordInbound counts one accepted inbound event.
func RecordInbound(transport, kind string) {
	inboundEvents.WithLabelValues(transport, kind).Inc()
}

// RecordDuplicate counts one dropped redelivery.
func RecordDuplicate() { inboundDuplicates.Inc() }

// RecordTransition counts a session entering mode/step.
func RecordTransition(mode, step string) {
	transitions.WithLabelValues(mode, step).Inc()
}

// RecordFlush counts one media batch outcome: "hosted", "partial", "failed"
// or "discarded".
func RecordFlush(outcome string) {
	mediaFlushes.WithLabelValues(outcome).Inc()
}

// RecordMediaItems adds n uploads with the given outcome ("ok" or "error").
func RecordMediaItems(outcome string, n int) {
	if n > 0 {
		mediaItems.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordCustomerQuery counts one customer bot message by action.
func RecordCustomerQuery(action string) {
	customerQueries.WithLabelValues(action).Inc()
}
