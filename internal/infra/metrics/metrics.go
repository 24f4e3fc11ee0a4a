package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConsumptionsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_consumptions_applied_total",
		Help: "Session consumptions successfully written.",
	})
	ConsumptionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_consumptions_rejected_total",
		Help: "Consumptions rejected, by reason.",
	}, []string{"reason"})
	Substitutions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_substitutions_total",
		Help: "Consumptions served from a substitute service type.",
	})
	ScansCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_expiry_scans_total",
		Help: "Completed expiry scanner passes.",
	})
	PurchasesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_purchases_expired_total",
		Help: "Purchases transitioned to expired by the scanner.",
	})
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notifications_sent_total",
		Help: "Notification send attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})
)
