package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commit_notify_webhooks_total",
		Help: "Inbound webhook requests by outcome.",
	}, []string{"outcome"}) // ok, invalid_signature, bad_request, error

	CommitMessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commit_notify_messages_sent_total",
		Help: "Commit notifications delivered.",
	})

	CommitMessagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commit_notify_messages_failed_total",
		Help: "Commit notifications that failed to deliver.",
	})

	WeeklyReportRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commit_notify_weekly_runs_total",
		Help: "Weekly digest job invocations.",
	})

	WeeklyDigestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commit_notify_weekly_digests_sent_total",
		Help: "Weekly digests delivered to bindings.",
	})

	WeeklyDigestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commit_notify_weekly_digests_failed_total",
		Help: "Weekly digests that failed to deliver.",
	})
)
