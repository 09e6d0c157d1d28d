// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat wraps the chat service's room and event-stream API.
//
// The package exposes two capability interfaces consumed by the
// routing core: [Gateway] finds rooms on behalf of a user token, and
// [Room] sends messages and opens a live message stream. The core
// never depends on the provider's wire format — [Event] is the only
// shape that crosses the boundary.
//
// [Gitter] is the HTTP implementation: REST calls for room lookup and
// message send, and a line-delimited JSON streaming connection for
// the message feed. Stream reads reconnect on transient failures with
// a bounded consecutive-failure budget; the event channel closes when
// the context is cancelled or the budget is exhausted.
//
// API errors are returned as [*APIError] carrying the HTTP status and
// the provider's error message; use [IsNotFound] to test for a
// missing or inaccessible room.
package chat
