package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestGroup is the body of an LCO observation portal submission.
type RequestGroup struct {
	Name            string    `json:"name"`
	Proposal        string    `json:"proposal"`
	IPPValue        float64   `json:"ipp_value"`
	Operator        string    `json:"operator"`
	ObservationType string    `json:"observation_type"`
	Requests        []Request `json:"requests"`
}

type Request struct {
	Configurations []Configuration `json:"configurations"`
	Windows        []Window        `json:"windows"`
	Location       Location        `json:"location"`
}

type Configuration struct {
	Type              string             `json:"type"`
	InstrumentType    string             `json:"instrument_type"`
	Target            Target             `json:"target"`
	Constraints       Constraints        `json:"constraints"`
	AcquisitionConfig map[string]any     `json:"acquisition_config"`
	GuidingConfig     map[string]any     `json:"guiding_config"`
	InstrumentConfigs []InstrumentConfig `json:"instrument_configs"`
}

type Target struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	RA    float64 `json:"ra"`
	Dec   float64 `json:"dec"`
	Epoch float64 `json:"epoch"`
}

type Constraints struct {
	MaxAirmass float64 `json:"max_airmass"`
}

type InstrumentConfig struct {
	ExposureTime    float64           `json:"exposure_time"`
	ExposureCount   int               `json:"exposure_count"`
	OpticalElements map[string]string `json:"optical_elements"`
}

type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Location struct {
	TelescopeClass string `json:"telescope_class"`
}

type LCOClient interface {
	SubmitRequestGroup(ctx context.Context, group *RequestGroup) ([]string, error)
	GetRequestState(ctx context.Context, requestID string) (string, error)
}

type lcoClient struct {
	portalURL string
	apiKey    string
	client    *http.Client
}

type LCOConfig struct {
	PortalURL string
	APIKey    string
}

func NewLCOClient(config LCOConfig) LCOClient {
	return &lcoClient{
		portalURL: strings.TrimRight(config.PortalURL, "/"),
		apiKey:    config.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitRequestGroup posts the group and returns the id of every request the
// portal created for it.
func (c *lcoClient) SubmitRequestGroup(ctx context.Context, group *RequestGroup) ([]string, error) {
	body, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("encode request group: %w", err)
	}

	var created struct {
		ID       int64 `json:"id"`
		Requests []struct {
			ID int64 `json:"id"`
		} `json:"requests"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/requestgroups/", bytes.NewReader(body), &created); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(created.Requests))
	for _, r := range created.Requests {
		ids = append(ids, fmt.Sprintf("%d", r.ID))
	}
	return ids, nil
}

func (c *lcoClient) GetRequestState(ctx context.Context, requestID string) (string, error) {
	var request struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(requestID)+"/", nil, &request); err != nil {
		return "", err
	}
	return request.State, nil
}

func (c *lcoClient) do(ctx context.Context, method, path string, body io.Reader, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.portalURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("User-Agent", "TOM-Observations/1.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("LCO API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}
