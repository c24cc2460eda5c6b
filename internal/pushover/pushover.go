// Package pushover is a minimal client for the Pushover message API.
package pushover

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/alert"
	"github.com/pulseboard/pulseboard/internal/store"
)

const pushoverAPI = "https://api.pushover.net/1/messages.json"

// Emergency-priority messages repeat until acknowledged.
const (
	emergencyRetry  = 60 * time.Second
	emergencyExpire = 1 * time.Hour
)

// ConfigSource supplies the current credentials. Reading per send means a
// dashboard credential update takes effect without a restart.
type ConfigSource interface {
	GetPushoverConfig(ctx context.Context) (*store.PushoverConfig, error)
}

type Client struct {
	config  ConfigSource
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(config ConfigSource, logger *slog.Logger) *Client {
	return &Client{
		config:  config,
		baseURL: pushoverAPI,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With("component", "pushover"),
	}
}

// Notify sends one push message. It is a no-op when notifications are
// disabled or credentials are missing.
func (c *Client) Notify(ctx context.Context, n alert.Notification) error {
	cfg, err := c.config.GetPushoverConfig(ctx)
	if err != nil {
		return fmt.Errorf("load pushover config: %w", err)
	}
	if !cfg.Enabled {
		c.logger.Debug("pushover disabled, dropping notification", "title", n.Title)
		return nil
	}
	if cfg.UserKey == "" || cfg.APIToken == "" {
		return fmt.Errorf("pushover credentials not configured")
	}

	form := url.Values{
		"token":    {cfg.APIToken},
		"user":     {cfg.UserKey},
		"title":    {n.Title},
		"message":  {n.Message},
		"priority": {strconv.Itoa(n.Priority)},
	}
	if n.Priority >= 2 {
		form.Set("retry", strconv.Itoa(int(emergencyRetry.Seconds())))
		form.Set("expire", strconv.Itoa(int(emergencyExpire.Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushover request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Errors []string `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("pushover API error %d: %s", resp.StatusCode, strings.Join(errResp.Errors, "; "))
	}

	var result struct {
		Status int `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Status != 1 {
		return fmt.Errorf("pushover returned status %d", result.Status)
	}

	c.logger.Info("notification sent", "title", n.Title, "priority", n.Priority)
	return nil
}
