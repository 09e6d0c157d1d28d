// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin serves bridge status over a local Unix socket.
//
// The protocol is one CBOR request followed by one CBOR response per
// connection. Encoding uses Core Deterministic Encoding (RFC 8949
// §4.2) so the same status always produces identical bytes, which
// keeps scripted polling diffable.
package admin
