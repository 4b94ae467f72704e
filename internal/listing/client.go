package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Store is the listing collaborator: the chat core only asks whether a
// listing exists before seeding a room.
type Store interface {
	ListingExists(ctx context.Context, listingID string) (bool, error)
}

// Client talks to the listing service over HTTP behind a circuit breaker,
// so a flapping listing service fails room creation fast instead of
// piling up connections.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "listing-service",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

func (c *Client) ListingExists(ctx context.Context, listingID string) (bool, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead,
			fmt.Sprintf("%s/v1/listings/%s", c.baseURL, listingID), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusOK:
			return true, nil
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		default:
			return nil, fmt.Errorf("listing service: status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}
