// Package license talks to the remote license provider.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/tenantapp/backend/internal/domain/license"
	"go.uber.org/zap"
)

const (
	maxProviderResponseSize = 1 << 20

	// FormatV2 is the current provider contract: key in a header, nested license object.
	FormatV2 = "v2"
	// FormatV1 is the legacy contract: key in the body, flat response.
	FormatV1 = "v1"

	licenseKeyHeader = "X-License-Key"
	failedMessage    = "license validation failed"
)

// ProviderConfig configures ProviderClient.
type ProviderConfig struct {
	BaseURL    string
	Endpoint   string
	Format     string
	Timeout    time.Duration
	AppVersion string
}

// ProviderClient validates license keys against the provider over HTTP.
type ProviderClient struct {
	config     ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProviderClient creates a new ProviderClient. An empty format means v2.
func NewProviderClient(cfg ProviderConfig, logger *zap.Logger) *ProviderClient {
	if cfg.Format == "" {
		cfg.Format = FormatV2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ProviderClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("license_provider"),
	}
}

type v2Request struct {
	Domain     string `json:"domain"`
	AppVersion string `json:"app_version"`
	GoVersion  string `json:"go_version"`
}

type v2Response struct {
	Valid   bool           `json:"valid"`
	Message string         `json:"message"`
	License map[string]any `json:"license"`
}

type v1Request struct {
	LicenseKey string `json:"license_key"`
	Domain     string `json:"domain"`
	AppVersion string `json:"app_version"`
}

type v1Response struct {
	Valid     bool           `json:"valid"`
	ExpiresAt *time.Time     `json:"expires_at"`
	Message   string         `json:"message"`
	Features  map[string]any `json:"features"`
}

// Validate asks the provider about licenseKey. Transport failures return an
// error wrapping license.ErrProviderUnreachable; every answer the provider
// gives, including non-2xx and garbage, is a verdict.
func (c *ProviderClient) Validate(ctx context.Context, licenseKey, domain string) (*license.Verdict, error) {
	var payload any
	if c.config.Format == FormatV1 {
		payload = v1Request{LicenseKey: licenseKey, Domain: domain, AppVersion: c.config.AppVersion}
	} else {
		payload = v2Request{Domain: domain, AppVersion: c.config.AppVersion, GoVersion: runtime.Version()}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("license: failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + c.config.Endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("license: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.Format != FormatV1 {
		req.Header.Set(licenseKeyHeader, licenseKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", license.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", license.ErrProviderUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("License provider rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return license.Invalid(failedMessage), nil
	}

	verdict, err := c.decode(raw)
	if err != nil {
		c.logger.Warn("Malformed license provider response", zap.Error(err))
		return license.Invalid(failedMessage), nil
	}
	return verdict, nil
}

func (c *ProviderClient) decode(raw []byte) (*license.Verdict, error) {
	if c.config.Format == FormatV1 {
		var r v1Response
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return &license.Verdict{Valid: r.Valid, ExpiresAt: r.ExpiresAt, Message: r.Message, Features: r.Features}, nil
	}

	var r v2Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	v := &license.Verdict{Valid: r.Valid, Message: r.Message}
	if r.License == nil {
		return v, nil
	}

	features := make(map[string]any, len(r.License))
	for k, val := range r.License {
		if k != "expires_at" {
			features[k] = val
		}
	}
	v.Features = features

	switch exp := r.License["expires_at"].(type) {
	case nil:
	case string:
		t, err := time.Parse(time.RFC3339, exp)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_at: %w", err)
		}
		v.ExpiresAt = &t
	default:
		return nil, fmt.Errorf("invalid expires_at type %T", exp)
	}
	return v, nil
}
