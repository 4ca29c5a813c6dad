package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/internal/mail"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Total number of successful user registrations.",
	})

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Total number of token verification attempts by status.",
		},
		[]string{"status"},
	)

	welcomeMailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_welcome_total",
			Help: "Total number of welcome mail hand-offs by stage and status.",
		},
		[]string{"stage", "status"},
	)
)

func observeLogin(err error) {
	outcome := "success"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	loginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTokenVerification counts a token check made by the auth gate.
func ObserveTokenVerification(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	tokenVerificationsTotal.WithLabelValues(status).Inc()
}

// ObserveMail returns a mail result func counting outcomes for stage, e.g.
// "enqueue" or "send".
func ObserveMail(stage string) mail.ResultFunc {
	return func(err error) {
		status := "success"
		if err != nil {
			status = "failure"
		}
		welcomeMailsTotal.WithLabelValues(stage, status).Inc()
	}
}
