// workers/remote_account.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"initium-core/services"
	"initium-core/store"
	"initium-core/utils"

	"go.uber.org/zap"
)

// RemoteAccountClient talks to the cloud account service over HTTP.
type RemoteAccountClient struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	log          *zap.Logger
}

// NewRemoteAccountClient validates baseURL once so a typo fails at startup rather than on the
// first sync.
func NewRemoteAccountClient(baseURL, serviceToken string, timeout time.Duration, log *zap.Logger) (*RemoteAccountClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("cloud service URL is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid cloud service URL %q: %w", baseURL, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteAccountClient{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   utils.NewHTTPClient(timeout),
		log:          log,
	}, nil
}

func (c *RemoteAccountClient) Push(ctx context.Context, id services.Identity, snap *store.Snapshot) (*store.Snapshot, error) {
	var out services.PushResponse
	if err := c.post(ctx, services.SyncEndpoint, id, snap, &out); err != nil {
		return nil, err
	}
	if out.Snapshot == nil {
		return nil, fmt.Errorf("cloud service response carried no snapshot")
	}
	return out.Snapshot, nil
}

func (c *RemoteAccountClient) Migrate(ctx context.Context, id services.Identity, snap *store.Snapshot) (int, error) {
	var out services.MigrateResponse
	if err := c.post(ctx, services.MigrateEndpoint, id, snap, &out); err != nil {
		return 0, err
	}
	return out.Accepted, nil
}

func (c *RemoteAccountClient) post(ctx context.Context, path string, id services.Identity, snap *store.Snapshot, out any) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid cloud service URL '%s': %w", c.baseURL, err)
	}
	finalURL := base.JoinPath(path).String()

	body, err := json.Marshal(services.PushRequest{Snapshot: snap, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, finalURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	req.Header.Set("X-User-ID", id.UserID)
	req.Header.Set("X-Session-Token", id.Token)

	c.log.Debug("➡️  [REMOTE] POST", zap.String("url", finalURL), zap.Int("bytes", len(body)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to cloud service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Warn("❌ [REMOTE] non-200 response",
			zap.String("url", finalURL), zap.Int("status", resp.StatusCode), zap.ByteString("body", msg))
		return fmt.Errorf("cloud service returned %d: %s", resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode cloud service response: %w", err)
	}
	return nil
}
