// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CurrentVersion is the schema version written for new and freshly
// migrated records.
const CurrentVersion = 2

// DefaultSMSFormat is the outbound SMS template applied when a record
// has no per-user override. The placeholders {from} and {text} are
// substituted with the chat event's sender and body.
const DefaultSMSFormat = "{from}: {text}"

// phonePattern matches a normalized phone number: exactly ten digits,
// no separators, no country code.
var phonePattern = regexp.MustCompile(`^\d{10}$`)

// ValidPhone reports whether phone is a normalized 10-digit number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Room identifies the single chat room currently bridged to a user's
// phone.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MentionOnly bool   `json:"mentionOnly"`
}

// User is one bridged user, keyed by phone number. ActiveRoom is nil
// when the user has no subscription; the subscription manager keeps a
// live listener registered exactly when ActiveRoom is non-nil.
type User struct {
	// Version is the schema version. It only increases; see Migrate.
	Version int

	// Phone is the normalized 10-digit number. Immutable once created.
	Phone string

	// Username is the chat-service display name, set at registration.
	// Events authored by this username are never echoed back as SMS.
	Username string

	// Token is the opaque credential used to act as the user on the
	// chat service.
	Token string

	// ActiveRoom is the single bridged room, or nil.
	ActiveRoom *Room

	// Keywords gates chat→SMS forwarding: an event is forwarded when
	// its text contains any keyword as a case-sensitive substring. An
	// empty list means "forward everything".
	Keywords []string

	// Signature is appended to every outbound SMS when non-empty.
	// Added in schema version 2.
	Signature string

	// SMSFormat is the outbound template with {from} and {text}
	// placeholders. Empty means DefaultSMSFormat. Added in schema
	// version 2.
	SMSFormat string
}

// New creates a version-current record for a freshly registered user
// with no subscription and an empty keyword filter.
func New(phone, username, token string) *User {
	return &User{
		Version:   CurrentVersion,
		Phone:     phone,
		Username:  username,
		Token:     token,
		Keywords:  []string{},
		SMSFormat: DefaultSMSFormat,
	}
}

// Format returns the record's SMS template, falling back to
// DefaultSMSFormat when no override is set.
func (u *User) Format() string {
	if u.SMSFormat == "" {
		return DefaultSMSFormat
	}
	return u.SMSFormat
}

// Validate checks the fields that every stored record must satisfy.
// Records failing validation are treated as corrupt by the store.
func (u *User) Validate() error {
	if !ValidPhone(u.Phone) {
		return fmt.Errorf("record: invalid phone %q", u.Phone)
	}
	if u.Version < 1 {
		return fmt.Errorf("record: invalid version %d for phone %s", u.Version, u.Phone)
	}
	return nil
}

// document is the wire form stored in SQLite. Keywords are flattened
// to a single comma-joined string.
type document struct {
	Version    int    `json:"version"`
	Phone      string `json:"phone"`
	Username   string `json:"username"`
	Token      string `json:"token"`
	ActiveRoom *Room  `json:"activeRoom"`
	Keywords   string `json:"keywords"`
	Signature  string `json:"signature,omitempty"`
	SMSFormat  string `json:"smsFormat,omitempty"`
}

// Marshal serializes the record to its stored JSON document form.
func (u *User) Marshal() ([]byte, error) {
	doc := document{
		Version:    u.Version,
		Phone:      u.Phone,
		Username:   u.Username,
		Token:      u.Token,
		ActiveRoom: u.ActiveRoom,
		Keywords:   strings.Join(u.Keywords, ","),
		Signature:  u.Signature,
		SMSFormat:  u.SMSFormat,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("record: marshal phone %s: %w", u.Phone, err)
	}
	return data, nil
}

// Unmarshal deserializes a stored document, validates it, and applies
// any pending schema migrations. The returned record is always at
// CurrentVersion.
func Unmarshal(data []byte) (*User, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("record: unmarshal: %w", err)
	}

	user := &User{
		Version:    doc.Version,
		Phone:      doc.Phone,
		Username:   doc.Username,
		Token:      doc.Token,
		ActiveRoom: doc.ActiveRoom,
		Keywords:   splitKeywords(doc.Keywords),
		Signature:  doc.Signature,
		SMSFormat:  doc.SMSFormat,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	Migrate(user)
	return user, nil
}

// splitKeywords reverses the comma-join applied by Marshal. An empty
// stored string means an empty keyword list, not a list containing
// one empty keyword.
func splitKeywords(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}
