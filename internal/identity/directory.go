package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Directory resolves a user id to display identity for room summaries
// and broadcast envelopes.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// HTTPDirectory queries the user service. Lookups retry with exponential
// backoff; a user that cannot be resolved falls back to the raw id rather
// than failing the room listing.
type HTTPDirectory struct {
	baseURL string
	http    *http.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/v1/users/%s", d.baseURL, userID), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("user %s not found", userID))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("user service: status %d", resp.StatusCode)
		}
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(err)
		}
		name = body.DisplayName
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 3 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return name, nil
}

// StaticDirectory serves fixed names; used in tests and single-process
// deployments without a user service.
type StaticDirectory map[string]string

func (d StaticDirectory) DisplayName(_ context.Context, userID string) (string, error) {
	if name, ok := d[userID]; ok {
		return name, nil
	}
	return userID, nil
}
