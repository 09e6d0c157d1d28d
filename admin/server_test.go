// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
)

type fakeListenerSource struct {
	count int
}

func (f *fakeListenerSource) Stats() int { return f.count }

type fakeUserCounter struct {
	count int
	err   error
}

func (f *fakeUserCounter) Count(ctx context.Context) (int, error) {
	return f.count, f.err
}

func startTestServer(t *testing.T, listeners *fakeListenerSource, users *fakeUserCounter) (string, *Server) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "gsms.sock")
	server, err := Listen(Config{
		SocketPath:    socketPath,
		Subscriptions: listeners,
		Users:         users,
		Logger:        slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return socketPath, server
}

func roundTrip(t *testing.T, socketPath string, request Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dialing admin socket: %v", err)
	}
	defer conn.Close()

	if err := encMode.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	var response Response
	if err := decMode.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func TestStatusRequest(t *testing.T) {
	socketPath, _ := startTestServer(t,
		&fakeListenerSource{count: 3},
		&fakeUserCounter{count: 7})

	response := roundTrip(t, socketPath, Request{Op: OpStatus})
	if response.Error != "" {
		t.Fatalf("response error: %s", response.Error)
	}
	if response.Status == nil {
		t.Fatal("response has no status")
	}
	if response.Status.ActiveListeners != 3 {
		t.Errorf("ActiveListeners = %d, want 3", response.Status.ActiveListeners)
	}
	if response.Status.Users != 7 {
		t.Errorf("Users = %d, want 7", response.Status.Users)
	}
	if response.Status.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %d, want non-negative", response.Status.UptimeSeconds)
	}
}

func TestUnknownOp(t *testing.T) {
	socketPath, _ := startTestServer(t, &fakeListenerSource{}, &fakeUserCounter{})

	response := roundTrip(t, socketPath, Request{Op: "reboot"})
	if response.Error == "" {
		t.Error("unknown op answered without error")
	}
	if response.Status != nil {
		t.Errorf("unknown op returned status %+v", response.Status)
	}
}

func TestCountFailureReported(t *testing.T) {
	socketPath, _ := startTestServer(t,
		&fakeListenerSource{count: 1},
		&fakeUserCounter{err: errors.New("database locked")})

	response := roundTrip(t, socketPath, Request{Op: OpStatus})
	if response.Error == "" {
		t.Error("count failure answered without error")
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	listeners := &fakeListenerSource{}
	users := &fakeUserCounter{}
	socketPath := filepath.Join(t.TempDir(), "gsms.sock")

	first, err := Listen(Config{
		SocketPath:    socketPath,
		Subscriptions: listeners,
		Users:         users,
		Logger:        slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	first.Close()

	// The socket file may linger after an unclean shutdown; a new
	// server must still be able to bind.
	second, err := Listen(Config{
		SocketPath:    socketPath,
		Subscriptions: listeners,
		Users:         users,
		Logger:        slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("second Listen: %v", err)
	}
	second.Close()
}
