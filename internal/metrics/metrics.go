// Package metrics holds the Prometheus collectors shared by the realtime
// components. They are registered on the default registry and served by
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchmaking_queue_depth",
			Help: "Tickets currently waiting per game",
		},
		[]string{"game"},
	)
	MatchesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_pairs_total",
			Help: "Players paired by the matchmaking queue",
		},
		[]string{"game", "mode", "storage"},
	)
	QueueTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_timeouts_total",
			Help: "Tickets removed because no opponent arrived in time",
		},
		[]string{"game"},
	)
	MatchesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_matches_started_total",
			Help: "Rooms promoted to in progress",
		},
		[]string{"kind"},
	)
	MatchesEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_matches_ended_total",
			Help: "Rooms that reached a terminal state",
		},
		[]string{"kind", "reason"},
	)
	ActivePlayers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "game_active_players",
			Help: "Approximate live match connections per game",
		},
		[]string{"game"},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(MatchesCreated)
	prometheus.MustRegister(QueueTimeouts)
	prometheus.MustRegister(MatchesStarted)
	prometheus.MustRegister(MatchesEnded)
	prometheus.MustRegister(ActivePlayers)
}
