package cloudconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/serializer"
)

var (
	// ErrNoRemoteConfig is returned by Fetch when the portal has no document
	// for this device.
	ErrNoRemoteConfig = errors.New("no cloud config for device")

	// ErrConflict is returned by Publish when the portal moved past the base
	// version.
	ErrConflict = errors.New("cloud config changed remotely")
)

const (
	defaultClientTimeout = 30 * time.Second
	maxResponseSize      = 1 << 20
)

// Client talks to the portal's device configuration endpoint.
type Client interface {
	Fetch(ctx context.Context) (model.CloudDocument, error)
	Publish(ctx context.Context, doc model.CloudDocument, baseVersion int64) (int64, error)
}

// HTTPClient implements Client over the portal's REST API.
type HTTPClient struct {
	baseURL    string
	deviceID   string
	token      string
	httpClient *http.Client
	serializer serializer.CloudConfigSerializer
}

// NewHTTPClient creates a portal client for one device.
func NewHTTPClient(baseURL, deviceID, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceID:   deviceID,
		token:      token,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

func (c *HTTPClient) url() string {
	return fmt.Sprintf("%s/v1/devices/%s/config", c.baseURL, c.deviceID)
}

func (c *HTTPClient) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// Fetch downloads the device's current cloud document.
func (c *HTTPClient) Fetch(ctx context.Context) (model.CloudDocument, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return model.CloudDocument{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.CloudDocument{}, fmt.Errorf("fetch cloud config: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.CloudDocument{}, ErrNoRemoteConfig
	case resp.StatusCode != http.StatusOK:
		return model.CloudDocument{}, statusError("fetch cloud config", resp)
	}

	var m map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&m); err != nil {
		return model.CloudDocument{}, fmt.Errorf("decode cloud config: %w", err)
	}
	doc, err := c.serializer.Unserialize(m)
	if err != nil {
		return model.CloudDocument{}, fmt.Errorf("decode cloud config: %w", err)
	}
	return doc, nil
}

type publishResponse struct {
	Version int64 `json:"version"`
}

// Publish uploads doc, provided the portal is still at baseVersion, and
// returns the version the portal assigned.
func (c *HTTPClient) Publish(ctx context.Context, doc model.CloudDocument, baseVersion int64) (int64, error) {
	body, err := json.Marshal(c.serializer.Serialize(doc))
	if err != nil {
		return 0, fmt.Errorf("encode cloud config: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", strconv.FormatInt(baseVersion, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("publish cloud config: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusPreconditionFailed:
		return 0, ErrConflict
	default:
		return 0, statusError("publish cloud config", resp)
	}

	var out publishResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode publish response: %w", err)
	}
	return out.Version, nil
}

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
}
