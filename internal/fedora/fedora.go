// Package fedora looks up the latest Fedora release and whether the
// next one has been branched yet, from the endoflife.date feed and the
// Fedora mirrorlist.
package fedora

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrCurrentNotFound is returned when the mirrorlist does not mention
// the current release at all, which means the listing cannot be
// trusted to answer the branched/unbranched question.
var ErrCurrentNotFound = errors.New("current release not found in mirrorlist")

// Client queries the two release-metadata endpoints.
type Client struct {
	eolURL        string
	mirrorlistURL string
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient creates a Fedora release lookup client.
func NewClient(eolURL, mirrorlistURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		eolURL:        eolURL,
		mirrorlistURL: mirrorlistURL,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// LatestRelease returns the newest released Fedora version number.
func (c *Client) LatestRelease(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.eolURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("release feed lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("release feed returned status %d", resp.StatusCode)
	}

	var cycles []struct {
		Latest string `json:"latest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cycles); err != nil {
		return 0, fmt.Errorf("failed to decode release feed: %w", err)
	}
	if len(cycles) == 0 {
		return 0, errors.New("release feed is empty")
	}

	latest, err := strconv.Atoi(cycles[0].Latest)
	if err != nil {
		return 0, fmt.Errorf("release feed has non-numeric latest %q: %w", cycles[0].Latest, err)
	}
	return latest, nil
}

// NextRelease reports what follows the current release: the next
// version number once its mirror repositories are branched, "rawhide"
// until then.
func (c *Client) NextRelease(ctx context.Context, current int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mirrorlistURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mirrorlist lookup failed: %w", err)
	}
	defer resp.Body.Close()

	var foundCurrent, foundNext bool
	currentTag := fmt.Sprintf("fedora-%d", current)
	nextTag := fmt.Sprintf("fedora-%d", current+1)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, currentTag) {
			foundCurrent = true
		}
		if strings.Contains(line, nextTag) {
			foundNext = true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read mirrorlist: %w", err)
	}

	if !foundCurrent {
		return "", fmt.Errorf("%w: fedora-%d", ErrCurrentNotFound, current)
	}
	if foundNext {
		c.logger.Debug("Next release is branched", zap.Int("next", current+1))
		return strconv.Itoa(current + 1), nil
	}
	return "rawhide", nil
}
