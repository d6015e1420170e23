package upstream

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"daoquery/internal/config"
	"daoquery/internal/querier"
)

// maxResponseSize bounds the body read from an LCD endpoint
const maxResponseSize = 32 * 1024 * 1024

// smartQueryResponse is the LCD envelope around a smart query result
type smartQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

// Endpoint represents a single LCD REST endpoint of a chain
type Endpoint struct {
	name   string
	lcdURL string
	weight int
	role   Role

	httpClient *http.Client
	status     *Status
	logger     zerolog.Logger
}

// Config for creating a new Endpoint
type Config struct {
	Name           string
	LCDURL         string
	Weight         int
	Role           Role
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// NewEndpoint creates a new Endpoint instance
func NewEndpoint(cfg Config) *Endpoint {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}

	return &Endpoint{
		name:       cfg.Name,
		lcdURL:     strings.TrimRight(cfg.LCDURL, "/"),
		weight:     cfg.Weight,
		role:       cfg.Role,
		httpClient: httpClient,
		status:     NewStatus(),
		logger:     cfg.Logger.With().Str("endpoint", cfg.Name).Logger(),
	}
}

// NewEndpointFromConfig creates an Endpoint from config
func NewEndpointFromConfig(cfg config.EndpointConfig, globalCfg *config.Config, logger zerolog.Logger) *Endpoint {
	return NewEndpoint(Config{
		Name:           cfg.Name,
		LCDURL:         cfg.LCDURL,
		Weight:         cfg.Weight,
		Role:           RoleFromConfig(cfg.Role),
		RequestTimeout: globalCfg.GetRequestTimeoutDuration(),
		Logger:         logger,
	})
}

// Name returns the endpoint name
func (e *Endpoint) Name() string {
	return e.name
}

// LCDURL returns the base LCD URL
func (e *Endpoint) LCDURL() string {
	return e.lcdURL
}

// Weight returns the weight for load balancing
func (e *Endpoint) Weight() int {
	return e.weight
}

// Role returns the endpoint role
func (e *Endpoint) Role() Role {
	return e.role
}

// IsMain returns true if this is a main endpoint
func (e *Endpoint) IsMain() bool {
	return e.role == RoleMain
}

// IsFallback returns true if this is a fallback endpoint
func (e *Endpoint) IsFallback() bool {
	return e.role == RoleFallback
}

// Status returns the endpoint counters
func (e *Endpoint) Status() *Status {
	return e.status
}

// SmartQuery runs a CosmWasm smart query and returns the contents of "data".
// GET {lcd}/cosmwasm/wasm/v1/contract/{address}/smart/{base64(query)}
func (e *Endpoint) SmartQuery(ctx context.Context, contractAddress string, query []byte) (json.RawMessage, error) {
	queryURL := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s/smart/%s",
		e.lcdURL,
		url.PathEscape(contractAddress),
		url.PathEscape(base64.StdEncoding.EncodeToString(query)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	e.status.IncrementRequestCount()

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		e.status.RecordFailure()
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		e.status.RecordFailure()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		e.status.RecordFailure()
		var contractErr querier.ContractError
		if err := json.Unmarshal(body, &contractErr); err == nil && contractErr.Message != "" {
			return nil, &contractErr
		}
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var out smartQueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		e.status.RecordFailure()
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Data) == 0 {
		e.status.RecordFailure()
		return nil, fmt.Errorf("response has no data field")
	}

	return out.Data, nil
}

// Close releases idle connections
func (e *Endpoint) Close() {
	e.httpClient.CloseIdleConnections()
}
