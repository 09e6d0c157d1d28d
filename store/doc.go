// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists user records in SQLite, keyed by phone
// number. It is a document store: each row holds the record's JSON
// wire form, and [record.Unmarshal] (including schema migration) runs
// on every read before a record is handed to a caller.
//
// ListAll isolates faults: a single corrupt document is skipped with
// a logged warning rather than failing the batch, so one bad row can
// never prevent startup reconnection from restoring the remaining
// subscriptions.
package store
