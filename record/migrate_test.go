// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package record

import "testing"

func TestMigrateVersionOne(t *testing.T) {
	user := &User{
		Version:  1,
		Phone:    "5551234567",
		Username: "bob",
		Token:    "tok-123",
		Keywords: []string{"@bob"},
	}

	applied := Migrate(user)
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	if user.Version != 2 {
		t.Errorf("Version = %d, want 2", user.Version)
	}
	if user.SMSFormat != DefaultSMSFormat {
		t.Errorf("SMSFormat = %q, want %q", user.SMSFormat, DefaultSMSFormat)
	}
	if user.Signature != "" {
		t.Errorf("Signature = %q, want empty", user.Signature)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	user := &User{
		Version:   2,
		Phone:     "5551234567",
		Username:  "bob",
		Token:     "tok-123",
		SMSFormat: "custom {text}",
		Signature: "- bob",
	}

	if applied := Migrate(user); applied != 0 {
		t.Errorf("applied = %d, want 0 for a current record", applied)
	}
	if user.SMSFormat != "custom {text}" {
		t.Errorf("SMSFormat = %q, migration clobbered a current record", user.SMSFormat)
	}
	if user.Signature != "- bob" {
		t.Errorf("Signature = %q, migration clobbered a current record", user.Signature)
	}
}

func TestUnmarshalMigratesVersionOne(t *testing.T) {
	// A document persisted before the version-2 formatting fields
	// existed.
	data := []byte(`{"version":1,"phone":"5551234567","username":"bob","token":"t","activeRoom":{"id":"r1","name":"gsms/dev","mentionOnly":false},"keywords":"@bob"}`)

	user, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if user.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", user.Version, CurrentVersion)
	}
	if user.SMSFormat != DefaultSMSFormat {
		t.Errorf("SMSFormat = %q, want default after migration", user.SMSFormat)
	}
	if user.ActiveRoom == nil || user.ActiveRoom.ID != "r1" {
		t.Errorf("ActiveRoom = %+v, want room r1 preserved", user.ActiveRoom)
	}
}
