// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package router decides what crosses the bridge and in which form.
//
// Outbound (chat to SMS): [Router.RouteOutbound] applies the user's
// keyword filter and message template, then hands the body to the SMS
// gateway. Inbound (SMS to chat): [Router.RouteInboundSMS] resolves
// the sender's record and forwards the text into their active room,
// or answers with a prompt when the sender is unknown or has no
// active room.
//
// The filter and formatting rules are exposed as the pure functions
// [ShouldForward] and [FormatOutbound] so they can be tested without
// any gateway in play.
package router
