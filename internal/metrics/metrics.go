package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outreach_emails_sent_total",
	Help: "Outbound emails by terminal status",
}, []string{"template", "status"})

var EmailsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outreach_emails_skipped_total",
	Help: "Deliveries skipped before transport",
}, []string{"template", "reason"})

var SendRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "outreach_send_retries_total",
	Help: "SMTP send retries",
})

var Opens = promauto.NewCounter(prometheus.CounterOpts{
	Name: "outreach_opens_total",
	Help: "Open beacons recorded",
})

var Clicks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "outreach_clicks_total",
	Help: "Click beacons recorded",
})

var Unsubscribes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "outreach_unsubscribes_total",
	Help: "Applicants marked unsubscribed",
})
