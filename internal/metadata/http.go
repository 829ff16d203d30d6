package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// userAgent identifies the application to the metadata services, as
// their terms of use require.
const userAgent = "cadenza/1.0 (+https://github.com/cadenza-player/cadenza)"

const httpTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// getJSON fetches a URL and decodes the JSON body into target. Server
// errors are retried once after a short pause; everything else fails
// immediately. Providers treat any returned error as "no answer".
func getJSON(ctx context.Context, client *http.Client, url string, target interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status: %s", resp.Status)
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}
	return lastErr
}
