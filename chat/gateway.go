// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "context"

// OperationCreate is the event operation for a newly created chat
// message. Only create events trigger routing; edits, deletions and
// read notifications carry other operations.
const OperationCreate = "create"

// Event is a single message event from a room's stream, decoded from
// the provider's {operation, model: {fromUser: {username}, text}}
// wire shape.
type Event struct {
	// Operation discriminates the event kind; see OperationCreate.
	Operation string

	// FromUsername is the chat display name of the message author.
	FromUsername string

	// Text is the message body.
	Text string
}

// Gateway finds rooms on the chat service. Implementations act with
// the calling user's credential, never a shared one.
type Gateway interface {
	// FindRoom resolves a room the token's user can access. Returns
	// *APIError with a 404 status when the room does not exist or the
	// user cannot see it.
	FindRoom(ctx context.Context, token, roomID string) (Room, error)
}

// Room is a live handle to a single chat room, bound to the token it
// was found with.
type Room interface {
	// ID returns the provider's room identifier.
	ID() string

	// Name returns the human-readable room name.
	Name() string

	// Send posts a message to the room as the bound user.
	Send(ctx context.Context, text string) error

	// Stream opens the room's message event stream. The returned
	// channel closes when ctx is cancelled or the stream fails
	// permanently. Events of every operation are delivered; callers
	// filter on Event.Operation.
	Stream(ctx context.Context) (<-chan Event, error)
}
