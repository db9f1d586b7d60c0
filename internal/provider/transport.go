package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/httputil"
	"github.com/wonho/pulserank/pkg/logger"
)

// Observer receives the outcome of every provider call.
type Observer interface {
	ProviderRequest(provider string, err error)
}

// Transport bundles what every adapter call needs: the retrying HTTP
// client, the provider's rate budget and its circuit breaker. Adapters
// never touch the network any other way.
type Transport struct {
	Name    string
	HTTP    *httputil.Client
	Budget  *Budget
	Breaker *Breaker
	Log     *logger.Logger

	obs Observer
}

// NewTransport wires a transport for one provider.
func NewTransport(name string, httpClient *httputil.Client, budget *Budget, log *logger.Logger) *Transport {
	return &Transport{
		Name:    name,
		HTTP:    httpClient,
		Budget:  budget,
		Breaker: NewBreaker(name, log),
		Log:     log,
	}
}

// WithObserver attaches a call observer, usually the metrics registry.
func (t *Transport) WithObserver(obs Observer) *Transport {
	t.obs = obs
	return t
}

func (t *Transport) observe(err error) {
	if t.obs != nil {
		t.obs.ProviderRequest(t.Name, err)
	}
}

// GetJSON acquires budget, then runs a JSON GET through the breaker,
// mapping transport outcomes onto the domain error taxonomy.
func (t *Transport) GetJSON(ctx context.Context, url string, dest interface{}) error {
	if err := t.Budget.Acquire(ctx); err != nil {
		t.observe(err)
		return err
	}

	err := t.Breaker.Execute(func() error {
		return classify(t.HTTP.GetJSON(ctx, url, dest))
	})
	t.observe(err)
	return err
}

// GetHTML acquires budget, then fetches a page body through the breaker.
func (t *Transport) GetHTML(ctx context.Context, url string) (*http.Response, error) {
	if err := t.Budget.Acquire(ctx); err != nil {
		t.observe(err)
		return nil, err
	}

	var resp *http.Response
	err := t.Breaker.Execute(func() error {
		r, err := t.HTTP.Get(ctx, url)
		if err != nil {
			return classify(err)
		}
		if r.StatusCode != http.StatusOK {
			r.Body.Close()
			return classify(&httputil.StatusError{Code: r.StatusCode, URL: url})
		}
		resp = r
		return nil
	})
	t.observe(err)
	return resp, err
}

// classify maps an HTTP-layer error onto the domain taxonomy. By the
// time a status error gets here the retry budget is already spent, so
// transient statuses become ErrProviderUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusNotFound, statusErr.Code == http.StatusBadRequest:
			return fmt.Errorf("%s: %w", statusErr.Error(), domain.ErrInvalidInstrument)
		case statusErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", statusErr.Error(), domain.ErrRateLimited)
		default:
			return fmt.Errorf("%s: %w", statusErr.Error(), domain.ErrProviderUnavailable)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%v: %w", err, domain.ErrProviderUnavailable)
}
