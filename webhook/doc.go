// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package webhook receives inbound SMS from the provider.
//
// The provider POSTs form-encoded From/Body fields to /sms. The
// handler normalizes the sender's number, hands the text to the
// message router, and always answers with an empty TwiML response so
// the provider does not echo anything back to the user. Routing
// failures are logged, not surfaced; the provider would only retry
// and duplicate the message.
package webhook
