// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package sms

import "context"

// Gateway sends SMS messages. phone is the recipient's normalized
// 10-digit number; implementations apply country-code formatting.
type Gateway interface {
	Send(ctx context.Context, phone, body string) error
}
