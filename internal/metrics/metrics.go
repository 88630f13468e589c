package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "stock_reservations_total",
		Help:      "Stock reservation attempts by result (ok, insufficient, error).",
	}, []string{"result"})

	Releases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "stock_releases_total",
		Help:      "Stock returned to the pool by cancel or refund.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "order_transitions_total",
		Help:      "Order transition attempts by action and result.",
	}, []string{"action", "result"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})

	AutoConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "auto_confirmed_total",
		Help:      "Orders promoted to delivered by the sweeper.",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "notifications_dropped_total",
		Help:      "Notifications that could not be queued for delivery.",
	})
)

func Handler() http.Handler { return promhttp.Handler() }
