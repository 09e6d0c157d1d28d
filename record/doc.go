// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the persisted user record: the single
// document, keyed by phone number, that drives all routing decisions.
//
// A [User] is a pure data value — it never carries live gateway
// handles. The wire form stored in SQLite is a JSON document with
// keywords flattened to a comma-joined string (see [User.Marshal]).
// Schema evolution is an ordered chain of idempotent migration steps
// applied transparently during [Unmarshal], so a record stored at any
// historical version deterministically reaches [CurrentVersion]
// before any caller sees it.
package record
