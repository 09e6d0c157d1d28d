// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package sms

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTwilio(t *testing.T, apiURL string) *Twilio {
	t.Helper()
	gateway, err := NewTwilio(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "4252506802",
		APIURL:     apiURL,
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewTwilio: %v", err)
	}
	return gateway
}

func TestSendFormatsNumbers(t *testing.T) {
	var gotTo, gotFrom, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		username, password, ok := request.BasicAuth()
		if !ok || username != "AC123" || password != "secret" {
			t.Errorf("basic auth = %s/%s (%v), want AC123/secret", username, password, ok)
		}
		if err := request.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotTo = request.PostFormValue("To")
		gotFrom = request.PostFormValue("From")
		gotBody = request.PostFormValue("Body")
		writer.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	gateway := newTestTwilio(t, server.URL)
	if err := gateway.Send(context.Background(), "5551234567", "alice: hello @bob"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotTo != "+15551234567" {
		t.Errorf("To = %q, want +15551234567", gotTo)
	}
	if gotFrom != "+14252506802" {
		t.Errorf("From = %q, want +14252506802", gotFrom)
	}
	if gotBody != "alice: hello @bob" {
		t.Errorf("Body = %q, want forwarded message", gotBody)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts++
		if attempts == 1 {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		writer.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	gateway := newTestTwilio(t, server.URL)
	if err := gateway.Send(context.Background(), "5551234567", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one retry after 500)", attempts)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts++
		writer.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	gateway := newTestTwilio(t, server.URL)
	if err := gateway.Send(context.Background(), "5551234567", "hi"); err == nil {
		t.Fatal("Send succeeded on 400, want error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx is not retried)", attempts)
	}
}

func TestSendGivesUpAfterBudget(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		attempts++
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gateway := newTestTwilio(t, server.URL)
	if err := gateway.Send(context.Background(), "5551234567", "hi"); err == nil {
		t.Fatal("Send succeeded with a permanently failing provider, want error")
	}
	if attempts != sendAttempts {
		t.Errorf("attempts = %d, want %d", attempts, sendAttempts)
	}
}
