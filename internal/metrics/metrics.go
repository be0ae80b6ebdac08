package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Answer results.
const (
	ResultCorrect = "correct"
	ResultWrong   = "wrong"
	ResultSkipped = "skipped"
	ResultInvalid = "invalid"
)

// Metrics groups the bot's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	quizzesStarted   *prometheus.CounterVec
	quizzesFinished  prometheus.Counter
	quizzesCancelled prometheus.Counter
	answers          *prometheus.CounterVec
	handlerErrors    prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quizzesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizbot",
			Name:      "quizzes_started_total",
			Help:      "Quizzes started, by mode.",
		}, []string{"mode"}),
		quizzesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizbot",
			Name:      "quizzes_finished_total",
			Help:      "Quizzes that reached the last question.",
		}),
		quizzesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizbot",
			Name:      "quizzes_cancelled_total",
			Help:      "Quizzes cancelled by the user.",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizbot",
			Name:      "answers_total",
			Help:      "Answers received during quizzes, by result.",
		}, []string{"result"}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizbot",
			Name:      "handler_errors_total",
			Help:      "Updates that failed because of a storage error.",
		}),
	}
	reg.MustRegister(m.quizzesStarted, m.quizzesFinished, m.quizzesCancelled, m.answers, m.handlerErrors)
	return m
}

func (m *Metrics) QuizStarted(mode string) {
	if m == nil {
		return
	}
	m.quizzesStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) QuizFinished() {
	if m == nil {
		return
	}
	m.quizzesFinished.Inc()
}

func (m *Metrics) QuizCancelled() {
	if m == nil {
		return
	}
	m.quizzesCancelled.Inc()
}

func (m *Metrics) Answer(result string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(result).Inc()
}

func (m *Metrics) HandlerError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}
