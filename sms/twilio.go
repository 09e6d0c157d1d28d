// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultAPIURL is the production Twilio REST endpoint.
const DefaultAPIURL = "https://api.twilio.com"

// sendAttempts is the total number of attempts per message: the
// initial send plus two retries.
const sendAttempts = 3

// retryBaseDelay is the initial backoff between attempts; backoff is
// exponential from here.
const retryBaseDelay = 500 * time.Millisecond

// TwilioConfig holds configuration for creating a Twilio gateway.
type TwilioConfig struct {
	// AccountSID and AuthToken are the Twilio API credentials.
	AccountSID string
	AuthToken  string

	// FromNumber is the bridge's own 10-digit SMS number, used as the
	// sender of every outbound message.
	FromNumber string

	// APIURL overrides the Twilio endpoint, for tests. Empty means
	// DefaultAPIURL.
	APIURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Twilio sends SMS through the Twilio Messages API.
type Twilio struct {
	accountSID string
	authToken  string
	fromNumber string
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTwilio creates an SMS gateway backed by the Twilio REST API.
func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("sms: AccountSID is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("sms: AuthToken is required")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("sms: FromNumber is required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Send delivers body to phone as a single SMS. Transport errors and
// 5xx responses are retried with exponential backoff up to
// sendAttempts total attempts; 4xx responses fail immediately.
func (t *Twilio) Send(ctx context.Context, phone, body string) error {
	backoff := retry.WithMaxRetries(sendAttempts-1, retry.NewExponential(retryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return t.sendOnce(ctx, phone, body)
	})
	if err != nil {
		return fmt.Errorf("sms: send to %s: %w", phone, err)
	}

	t.logger.Info("sms sent", "to", phone, "length", len(body))
	return nil
}

// sendOnce performs a single Messages API call. Retryable failures
// are wrapped with retry.RetryableError.
func (t *Twilio) sendOnce(ctx context.Context, phone, body string) error {
	form := url.Values{}
	form.Set("To", "+1"+phone)
	form.Set("From", "+1"+t.fromNumber)
	form.Set("Body", body)

	endpoint := t.apiURL + "/2010-04-01/Accounts/" + t.accountSID + "/Messages.json"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.SetBasicAuth(t.accountSID, t.authToken)

	response, err := t.httpClient.Do(request)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("request: %w", err))
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	callErr := fmt.Errorf("provider returned %d: %s",
		response.StatusCode, strings.TrimSpace(string(responseBody)))

	if response.StatusCode >= 500 {
		return retry.RetryableError(callErr)
	}
	return callErr
}
