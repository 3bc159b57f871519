package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "permit_review"

// Workflow counters, registered with the default registry served at /metrics
var (
	DocumentsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_uploaded_total",
		Help:      "Document versions stored.",
	})

	ReviewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_transitions_total",
		Help:      "Document review status changes by target status.",
	}, []string{"to"})

	NotificationEmailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_email_failures_total",
		Help:      "Notification e-mails that could not be delivered.",
	})

	ChangeEventFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "change_event_failures_total",
		Help:      "Change events that could not be published.",
	})
)
