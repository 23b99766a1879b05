package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/frkn-dev/pony/internal/model"
)

// RESTClient is the agent's small client for the orchestrator's REST surface
// (§6): node registration, the delta catch-up query, and stat pushes. It
// carries no retry policy of its own; §4.2.1 makes registration retry the
// caller's responsibility and the stat loop stages failed pushes locally
// instead (see RunStatLoop).
type RESTClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// NewRESTClient builds a RESTClient against the orchestrator's API address.
func NewRESTClient(baseURL, bearerToken string) *RESTClient {
	return &RESTClient{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{},
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("agent: marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("agent: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("agent: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("agent: decode %s %s response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// RegisterNode performs §4.2.1 step 4: POST /node. Retry is left to the
// caller; a persistent failure here is fatal to agent startup.
func (c *RESTClient) RegisterNode(ctx context.Context, n model.Node) error {
	status, err := c.do(ctx, http.MethodPost, "/node", n, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("agent: register node: unexpected status %d", status)
	}
	return nil
}

// RequestConnectionDelta implements the delta catch-up query
// GET /connections?proto=&env=&last_update= used by the sidecar's cold
// start (§4.3.1); the agent itself does not call it. The response body carries no connection data: it only acks that the
// orchestrator has queued the matching batch for publication, which the
// caller's own pub/sub subscriber receives and applies asynchronously.
func (c *RESTClient) RequestConnectionDelta(ctx context.Context, env string, proto model.ProtoTag, lastUpdate int64) error {
	q := url.Values{}
	q.Set("env", env)
	if proto != "" {
		q.Set("proto", string(proto))
	}
	if lastUpdate > 0 {
		q.Set("last_update", fmt.Sprintf("%d", lastUpdate/1e9))
	}

	status, err := c.do(ctx, http.MethodGet, "/connections?"+q.Encode(), nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("agent: request connection delta: unexpected status %d", status)
	}
	return nil
}

// PushConnectionStat implements the stat loop's REST push (§4.2.3).
func (c *RESTClient) PushConnectionStat(ctx context.Context, id string, stat model.ConnStat) error {
	status, err := c.do(ctx, http.MethodPut, "/connection/stat?id="+url.QueryEscape(id), stat, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotModified {
		return fmt.Errorf("agent: push connection stat %s: unexpected status %d", id, status)
	}
	return nil
}
