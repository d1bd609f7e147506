// Package gateway is the thin edge in front of userserv: a reverse proxy with
// a circuit breaker, a per-IP rate limit, and an optional JWT guard.
package gateway

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Forwarder relays requests to a single upstream. Upstream 5xx and transport
// errors trip the breaker; while open, requests are refused with 503.
type Forwarder struct {
	target *url.URL
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
}

// NewForwarder returns a Forwarder for the upstream base URL.
func NewForwarder(target string, logger *zap.Logger) (*Forwarder, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse upstream %q: %w", target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: upstream %q must be an absolute URL", target)
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "userserv",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Forwarder{
		target: u,
		client: &http.Client{Timeout: 30 * time.Second},
		cb:     cb,
		log:    logger,
	}, nil
}

// Handler proxies the request to the upstream and copies the response back.
func (f *Forwarder) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := f.cb.Execute(func() (interface{}, error) {
			return f.forward(c)
		})
		if err != nil {
			f.log.Error("upstream request failed", zap.String("path", c.Path()), zap.Error(err))
			status := fiber.StatusBadGateway
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{
				"statusCode": status,
				"message":    "service temporarily unavailable",
			})
		}
		resp := res.(*http.Response)
		defer resp.Body.Close()
		return copyResponse(c, resp)
	}
}

// forward builds and executes the upstream request. A 5xx response counts as a
// breaker failure and is not relayed.
func (f *Forwarder) forward(c *fiber.Ctx) (*http.Response, error) {
	outURL := *f.target
	outURL.Path = string(c.Request().URI().Path())
	outURL.RawQuery = string(c.Request().URI().QueryString())

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), outURL.String(), bytes.NewReader(c.Body()))
	if err != nil {
		return nil, err
	}
	c.Request().Header.VisitAll(func(key, value []byte) {
		req.Header.Add(string(key), string(value))
	})
	req.Header.Set("X-Forwarded-For", c.IP())
	req.Host = f.target.Host

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return resp, nil
}

func copyResponse(c *fiber.Ctx, resp *http.Response) error {
	for key, values := range resp.Header {
		for _, v := range values {
			c.Response().Header.Add(key, v)
		}
	}
	c.Status(resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return c.Send(body)
}
