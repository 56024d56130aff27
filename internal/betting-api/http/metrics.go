package httpapi

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betting_api_events_created_total",
		Help: "eventos criados",
	})
	betsPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betting_api_bets_placed_total",
		Help: "apostas registradas",
	})
	authFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betting_api_auth_failures_total",
		Help: "falhas de autenticação por tipo",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(eventsCreated, betsPlaced, authFailures)
}
