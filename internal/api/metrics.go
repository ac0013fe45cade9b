// Package api exposes engine turn metrics on /metrics.
package api

import (
	"github.com/BotWeave/BotWeave/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomePaused    = "paused"
	outcomeCompleted = "completed"
	outcomeError     = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "botweave",
		Subsystem: "engine",
		Name:      "turns_total",
		Help:      "Engine turns processed, by outcome.",
	}, []string{"outcome"})

	messagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botweave",
		Subsystem: "engine",
		Name:      "messages_total",
		Help:      "Outbound chat messages produced by engine turns.",
	})
)

// recordTurn updates turn counters from a successful engine invocation.
func recordTurn(turn models.TurnResult) {
	if turn.Input != nil {
		turnsTotal.WithLabelValues(outcomePaused).Inc()
	} else {
		turnsTotal.WithLabelValues(outcomeCompleted).Inc()
	}
	messagesTotal.Add(float64(len(turn.Messages)))
}
