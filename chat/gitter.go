// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitterConfig holds configuration for creating a Gitter gateway.
type GitterConfig struct {
	// APIURL is the base URL of the REST API (e.g. "https://api.gitter.im").
	APIURL string
	// StreamURL is the base URL of the streaming API (e.g. "https://stream.gitter.im").
	StreamURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used. The client must not set a timeout that would kill
	// long-lived streaming reads.
	HTTPClient *http.Client
	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Gitter is the HTTP implementation of Gateway against the Gitter
// REST and streaming APIs. It holds no per-user state: the user's
// token travels with every FindRoom call and is bound to the returned
// Room.
type Gitter struct {
	apiURL     string
	streamURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGitter creates a gateway for the Gitter-style chat API.
func NewGitter(cfg GitterConfig) (*Gitter, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("chat: APIURL is required")
	}
	if cfg.StreamURL == "" {
		return nil, fmt.Errorf("chat: StreamURL is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("chat: invalid APIURL %q: %w", cfg.APIURL, err)
	}
	if _, err := url.Parse(cfg.StreamURL); err != nil {
		return nil, fmt.Errorf("chat: invalid StreamURL %q: %w", cfg.StreamURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gitter{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		streamURL:  strings.TrimRight(cfg.StreamURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// roomResponse is the provider's room resource shape. Only the fields
// the bridge consumes are decoded.
type roomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FindRoom resolves a room by ID using the user's token.
func (g *Gitter) FindRoom(ctx context.Context, token, roomID string) (Room, error) {
	if token == "" {
		return nil, fmt.Errorf("chat: token is required")
	}
	if roomID == "" {
		return nil, fmt.Errorf("chat: roomID is required")
	}

	body, err := g.doRequest(ctx, http.MethodGet, "/v1/rooms/"+roomID, token, nil)
	if err != nil {
		return nil, fmt.Errorf("chat: find room %s: %w", roomID, err)
	}

	var response roomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("chat: parse room %s: %w", roomID, err)
	}
	if response.ID == "" {
		response.ID = roomID
	}

	return &gitterRoom{
		gateway: g,
		token:   token,
		id:      response.ID,
		name:    response.Name,
	}, nil
}

// gitterRoom is a Room bound to the token that found it.
type gitterRoom struct {
	gateway *Gitter
	token   string
	id      string
	name    string
}

func (r *gitterRoom) ID() string   { return r.id }
func (r *gitterRoom) Name() string { return r.name }

// Send posts a chat message to the room.
func (r *gitterRoom) Send(ctx context.Context, text string) error {
	payload := map[string]string{"text": text}
	_, err := r.gateway.doRequest(ctx, http.MethodPost, "/v1/rooms/"+r.id+"/chatMessages", r.token, payload)
	if err != nil {
		return fmt.Errorf("chat: send to room %s: %w", r.id, err)
	}
	return nil
}

// maxStreamRetries is the number of consecutive stream connection or
// read failures allowed before the event channel is closed. A
// successfully decoded event resets the counter.
const maxStreamRetries = 5

// streamRetryDelay is the pause before re-opening a failed stream
// connection.
const streamRetryDelay = time.Second

// streamMessage is the provider's streamed event wire shape:
// {operation, model: {fromUser: {username}, text}}.
type streamMessage struct {
	Operation string `json:"operation"`
	Model     struct {
		FromUser struct {
			Username string `json:"username"`
		} `json:"fromUser"`
		Text string `json:"text"`
	} `json:"model"`
}

// Stream opens the room's message feed. The initial connection is
// made synchronously so callers learn immediately whether the
// subscription took; subsequent reads and reconnects run in a
// background goroutine that owns the returned channel.
func (r *gitterRoom) Stream(ctx context.Context) (<-chan Event, error) {
	response, err := r.openStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: stream room %s: %w", r.id, err)
	}

	events := make(chan Event)
	go r.streamLoop(ctx, response, events)
	return events, nil
}

// openStream issues the streaming GET and returns the open response.
// The caller owns the response body.
func (r *gitterRoom) openStream(ctx context.Context) (*http.Response, error) {
	streamPath := r.gateway.streamURL + "/v1/rooms/" + r.id + "/chatMessages"
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, streamPath, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+r.token)
	request.Header.Set("Accept", "application/json")

	response, err := r.gateway.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		return nil, readAPIError(response)
	}
	return response, nil
}

// streamLoop reads line-delimited JSON events from the open response,
// reconnecting on failure up to maxStreamRetries consecutive times.
// Closes the events channel on exit.
func (r *gitterRoom) streamLoop(ctx context.Context, response *http.Response, events chan<- Event) {
	defer close(events)

	logger := r.gateway.logger.With("room_id", r.id)
	retries := 0

	for {
		err := r.readStream(ctx, response.Body, events, &retries)
		response.Body.Close()
		if ctx.Err() != nil {
			logger.Debug("stream closed", "reason", "context cancelled")
			return
		}
		retries++
		if retries > maxStreamRetries {
			logger.Error("stream failed permanently",
				"consecutive_failures", retries,
				"error", err,
			)
			return
		}
		logger.Warn("stream interrupted, reconnecting",
			"attempt", retries,
			"max_attempts", maxStreamRetries,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamRetryDelay):
		}

		response, err = r.openStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			retries++
			if retries > maxStreamRetries {
				logger.Error("stream reconnect failed permanently",
					"consecutive_failures", retries,
					"error", err,
				)
				return
			}
			// Synthesize a closed body so the next loop iteration
			// falls straight through to another reconnect attempt.
			response = &http.Response{Body: io.NopCloser(strings.NewReader(""))}
		}
	}
}

// readStream decodes events from one open stream body until EOF or a
// read error. Heartbeat lines (whitespace only) are skipped. Each
// successfully decoded event resets the caller's retry counter.
func (r *gitterRoom) readStream(ctx context.Context, body io.Reader, events chan<- Event, retries *int) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue // stream heartbeat
		}

		var message streamMessage
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			r.gateway.logger.Warn("dropping undecodable stream line",
				"room_id", r.id,
				"error", err,
			)
			continue
		}
		*retries = 0

		event := Event{
			Operation:    message.Operation,
			FromUsername: message.Model.FromUser.Username,
			Text:         message.Model.Text,
		}
		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// doRequest performs a REST request and returns the response body.
// On 2xx, returns the body. On other statuses, returns *APIError.
func (g *Gitter) doRequest(ctx context.Context, method, path, token string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, g.apiURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/json")

	response, err := g.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	return nil, apiErrorFromBody(response.StatusCode, responseBody)
}

// readAPIError drains an error response into an *APIError.
func readAPIError(response *http.Response) error {
	body, _ := io.ReadAll(response.Body)
	return apiErrorFromBody(response.StatusCode, body)
}

// apiErrorFromBody builds an *APIError from the provider's
// {"error": "..."} shape, falling back to the raw body.
func apiErrorFromBody(statusCode int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &APIError{StatusCode: statusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}
