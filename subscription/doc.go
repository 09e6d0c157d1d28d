// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package subscription owns the live room listeners and the user
// actions that change them.
//
// The [Manager] keeps at most one listener per phone. Each listener
// is a goroutine draining its room's event stream and handing create
// events to the message router. Subscribing to a new room attaches
// the new listener before tearing down the old one, so a user being
// moved between rooms never has a gap with no listener at all.
// Subscribe and unsubscribe for the same phone are serialized;
// different phones proceed concurrently.
//
// [Manager.Reconnect] restores listeners for every stored record with
// an active room after a restart. One record failing to reconnect
// does not stop the others.
package subscription
