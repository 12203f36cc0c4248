package providers

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pet-sync/models"
)

const userAgent = "pet-sync/1.0"

var breakerState *prometheus.GaugeVec

func init() {
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pet_sync_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open).",
		},
		[]string{"source"},
	)
	prometheus.MustRegister(breakerState)
}

// CustomTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type CustomTransport struct {
	Transport http.RoundTripper
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

// NewHTTPClient erstellt den HTTP-Client für Upstream-Aufrufe.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &CustomTransport{
			Transport: http.DefaultTransport,
		},
	}
}

// Guard schützt Upstream-Aufrufe mit Circuit Breaker und Rate Limiter.
// Er wiederholt keine Anfragen: ein Fehler bricht den Lauf der Quelle ab.
type Guard struct {
	source  models.Source
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*http.Response]
}

// NewGuard erstellt einen Guard. requestsPerSecond <= 0 bedeutet unbegrenzt.
func NewGuard(source models.Source, client *http.Client, requestsPerSecond float64, logger *zap.Logger) *Guard {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	breakerState.WithLabelValues(string(source)).Set(0)

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        string(source),
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state transition",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Guard{
		source:  source,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		cb:      cb,
	}
}

// Do führt die Anfrage aus. Nur Transportfehler zählen als Breaker-Fehler;
// den Statuscode prüft der Aufrufer.
func (g *Guard) Do(req *http.Request) (*http.Response, error) {
	if err := g.limiter.Wait(req.Context()); err != nil {
		return nil, &TransportError{Source: g.source, Op: "rate limit wait", Err: err}
	}
	resp, err := g.cb.Execute(func() (*http.Response, error) {
		return g.client.Do(req)
	})
	if err != nil {
		op := "request"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			op = "circuit breaker"
		}
		return nil, &TransportError{Source: g.source, Op: op, Err: err}
	}
	return resp, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
