package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ClientConfig contains configuration for the payment processor client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// Client handles communication with the payment processor API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new payment processor API client.
func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, errors.New("billing base url is not configured")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, errors.New("billing api key is not configured")
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 1 * time.Second
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}

	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}, nil
}

// CreateCheckoutSession initiates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	logrus.WithFields(logrus.Fields{
		"reference":    req.Reference,
		"amount_cents": req.AmountCents,
		"currency":     req.Currency,
	}).Info("billing_create_checkout_session")

	resp, err := c.makeRequest(ctx, http.MethodPost, "/checkout/sessions", req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session failed: %w", err)
	}
	defer resp.Body.Close()

	var session CheckoutSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode checkout session response failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reference":  req.Reference,
		"session_id": session.SessionID,
	}).Info("billing_checkout_session_created")

	return &session, nil
}

// GetSession retrieves the current state of a checkout session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	resp, err := c.makeRequest(ctx, http.MethodGet, fmt.Sprintf("/checkout/sessions/%s", sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	defer resp.Body.Close()

	var status SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode session status failed: %w", err)
	}
	return &status, nil
}

// makeRequest performs the HTTP request with proper headers, logging and retries.
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) (*http.Response, error) {
	url := c.config.BaseURL + endpoint

	var payloadBytes []byte
	var err error
	if payload != nil {
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload failed: %w", err)
		}
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
			logrus.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
			}).Warn("billing_request_retry")
		}

		var body io.Reader
		if payloadBytes != nil {
			body = bytes.NewReader(payloadBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("create request failed: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.httpClient.Do(req)
		if lastErr != nil {
			continue
		}

		// 5xx 可以重试，4xx 不行
		if resp.StatusCode >= http.StatusInternalServerError {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("billing http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("billing http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		return resp, nil
	}

	return nil, fmt.Errorf("billing request failed after %d retries: %w", c.config.MaxRetries, lastErr)
}
