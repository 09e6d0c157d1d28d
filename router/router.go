// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jtrinklein/gsms/chat"
	"github.com/jtrinklein/gsms/record"
	"github.com/jtrinklein/gsms/sms"
)

// DefaultRegisterPrompt is sent back when an SMS arrives from a phone
// with no user record.
const DefaultRegisterPrompt = "This number is not registered. Sign up on the web to link your chat account."

// DefaultNoRoomPrompt is sent back when a registered user texts in
// without an active room subscription.
const DefaultNoRoomPrompt = "You have no active room. Subscribe to a room on the web before texting."

// UserStore is the record lookup the router needs. *store.Store
// satisfies it.
type UserStore interface {
	Get(ctx context.Context, phone string) (*record.User, error)
}

// Prompts are the fixed replies for inbound SMS that cannot be
// forwarded.
type Prompts struct {
	Register     string
	NoActiveRoom string
}

// Config holds configuration for creating a Router.
type Config struct {
	// Store resolves phone numbers to user records. Required.
	Store UserStore

	// Chat locates rooms for inbound SMS forwarding. Required.
	Chat chat.Gateway

	// SMS delivers outbound messages and prompts. Required.
	SMS sms.Gateway

	// Prompts override the default replies. Empty fields keep the
	// defaults.
	Prompts Prompts

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Router moves messages between the chat service and the SMS
// provider.
type Router struct {
	store   UserStore
	chat    chat.Gateway
	sms     sms.Gateway
	prompts Prompts
	logger  *slog.Logger
}

// New creates a Router from cfg.
func New(cfg Config) (*Router, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("router: Store is required")
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("router: Chat is required")
	}
	if cfg.SMS == nil {
		return nil, fmt.Errorf("router: SMS is required")
	}

	prompts := cfg.Prompts
	if prompts.Register == "" {
		prompts.Register = DefaultRegisterPrompt
	}
	if prompts.NoActiveRoom == "" {
		prompts.NoActiveRoom = DefaultNoRoomPrompt
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		store:   cfg.Store,
		chat:    cfg.Chat,
		sms:     cfg.SMS,
		prompts: prompts,
		logger:  logger,
	}, nil
}

// ShouldForward reports whether a chat event should reach the user's
// phone. The user's own messages never forward. An empty keyword list
// forwards everything; otherwise the event text must contain at least
// one keyword as a case-sensitive substring.
func ShouldForward(user *record.User, event chat.Event) bool {
	if event.FromUsername == user.Username {
		return false
	}
	if len(user.Keywords) == 0 {
		return true
	}
	for _, keyword := range user.Keywords {
		if strings.Contains(event.Text, keyword) {
			return true
		}
	}
	return false
}

// FormatOutbound renders the SMS body for a forwarded chat event
// using the user's template and signature.
func FormatOutbound(user *record.User, event chat.Event) string {
	body := user.Format()
	body = strings.ReplaceAll(body, "{from}", event.FromUsername)
	body = strings.ReplaceAll(body, "{text}", event.Text)
	if user.Signature != "" {
		body += "\n" + user.Signature
	}
	return body
}

// RouteOutbound forwards a chat event to the user's phone when the
// keyword filter matches. A gateway failure is logged and the event
// dropped; delivery is best effort.
func (r *Router) RouteOutbound(ctx context.Context, user *record.User, event chat.Event) {
	if !ShouldForward(user, event) {
		return
	}

	body := FormatOutbound(user, event)
	if err := r.sms.Send(ctx, user.Phone, body); err != nil {
		r.logger.Error("dropping chat event, sms send failed",
			"phone", user.Phone,
			"from", event.FromUsername,
			"error", err)
		return
	}
	r.logger.Debug("forwarded chat event to sms",
		"phone", user.Phone,
		"from", event.FromUsername)
}

// RouteInboundSMS forwards an inbound SMS into the sender's active
// room. Unknown senders and users without an active room get a prompt
// back instead; neither case is an error to the caller.
func (r *Router) RouteInboundSMS(ctx context.Context, phone, text string) error {
	user, err := r.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("router: looking up %s: %w", phone, err)
	}
	if user == nil {
		r.logger.Info("inbound sms from unregistered phone", "phone", phone)
		return r.sendPrompt(ctx, phone, r.prompts.Register)
	}
	if user.ActiveRoom == nil {
		r.logger.Info("inbound sms with no active room", "phone", phone)
		return r.sendPrompt(ctx, phone, r.prompts.NoActiveRoom)
	}

	room, err := r.chat.FindRoom(ctx, user.Token, user.ActiveRoom.ID)
	if err != nil {
		return fmt.Errorf("router: finding room %s: %w", user.ActiveRoom.ID, err)
	}
	if err := room.Send(ctx, text); err != nil {
		return fmt.Errorf("router: sending to room %s: %w", user.ActiveRoom.ID, err)
	}

	r.logger.Debug("forwarded sms to chat",
		"phone", phone,
		"room", user.ActiveRoom.ID)
	return nil
}

func (r *Router) sendPrompt(ctx context.Context, phone, prompt string) error {
	if err := r.sms.Send(ctx, phone, prompt); err != nil {
		return fmt.Errorf("router: sending prompt to %s: %w", phone, err)
	}
	return nil
}
