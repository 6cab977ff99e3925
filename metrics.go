package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// groupBuilds counts grouping requests by outcome: "ok" or "rejected".
	groupBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groups_builds_total",
		Help: "Total number of group generation requests",
	}, []string{"outcome"})

	groupBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "groups_build_duration_seconds",
		Help:    "Time spent assembling groups",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	rosterStudents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groups_roster_students",
		Help: "Number of students in the last roster snapshot",
	})

	// rosterEvents counts database change notifications by table.
	rosterEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "groups_roster_events_total",
		Help: "Roster change notifications received",
	}, []string{"table"})

	eventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groups_event_subscribers",
		Help: "Current number of connected event stream clients",
	})
)

func init() {
	prometheus.MustRegister(
		groupBuilds,
		groupBuildDuration,
		rosterStudents,
		rosterEvents,
		eventSubscribers,
	)
}
