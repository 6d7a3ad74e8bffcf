package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/flightboard/pkg/logger"
)

// ErrUnknownSource is returned when the client is configured with an unsupported source type
var ErrUnknownSource = errors.New("unknown source type")

// Client is responsible for fetching aircraft reports from the live feed
type Client struct {
	httpClient *http.Client
	sourceType string
	url        string
	apiKey     string
	logger     *logger.Logger
	now        func() time.Time
}

// NewClient creates a new feed client
func NewClient(sourceType, url, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		sourceType: sourceType,
		url:        url,
		apiKey:     apiKey,
		logger:     log.Named("feed-cli"),
		now:        time.Now,
	}
}

// SourceType returns the configured source type
func (c *Client) SourceType() string {
	return c.sourceType
}

// Fetch polls the feed once and returns the normalized frame
func (c *Client) Fetch(ctx context.Context) (*Frame, error) {
	var decode func([]byte) ([]Report, error)
	switch c.sourceType {
	case SourceVirtualRadar:
		decode = decodeVirtualRadar
	case SourceReadsb:
		decode = decodeReadsb
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, c.sourceType)
	}

	body, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	reports, err := decode(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Successfully fetched feed data",
		logger.String("source", c.sourceType),
		logger.Int("aircraft_count", len(reports)),
	)

	return &Frame{
		Source:    c.sourceType,
		FetchedAt: c.now().UTC(),
		Reports:   reports,
	}, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-auth", c.apiKey)
	}

	c.logger.Debug("Fetching feed data", logger.String("url", c.url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func decodeVirtualRadar(body []byte) ([]Report, error) {
	var data VirtualRadarResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	reports := make([]Report, 0, len(data.Aircraft))
	for _, target := range data.Aircraft {
		reports = append(reports, target.Report())
	}
	return reports, nil
}

func decodeReadsb(body []byte) ([]Report, error) {
	var data ReadsbResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	reports := make([]Report, 0, len(data.Aircraft))
	for _, target := range data.Aircraft {
		reports = append(reports, target.Report())
	}
	return reports, nil
}
