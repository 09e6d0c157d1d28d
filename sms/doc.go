// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package sms wraps the SMS provider's send API behind the [Gateway]
// capability interface consumed by the routing core.
//
// [Twilio] is the HTTP implementation. Sends use bounded retry with
// exponential backoff: transport errors and 5xx responses are
// retried, 4xx responses fail immediately (the request will not get
// better on a second attempt).
package sms
