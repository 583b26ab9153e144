package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "community_scheduler_ticks_total",
		Help: "Number of notification scan ticks executed.",
	})

	ticksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "community_scheduler_ticks_skipped_total",
		Help: "Number of ticks skipped because the previous scan was still running.",
	})

	dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "community_scheduler_notifications_dispatched_total",
		Help: "Number of threshold notifications dispatched.",
	}, []string{"threshold"})

	deliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "community_scheduler_delivery_failures_total",
		Help: "Number of notification sink delivery failures.",
	})
)
