// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package record

// migration upgrades a record from exactly one schema version to the
// next. Each step is a pure function of the previous version's fields
// and must be idempotent in the chain sense: once Version has moved
// past From, the step never matches again.
type migration struct {
	// From is the version this step applies to.
	From int

	// Apply mutates the record in place and bumps Version by one.
	Apply func(*User)
}

// migrations is the ordered schema-migration chain. Future steps are
// appended here, each keyed by the version it upgrades from.
var migrations = []migration{
	{
		From: 1,
		Apply: func(u *User) {
			u.SMSFormat = DefaultSMSFormat
			u.Signature = ""
			u.Version = 2
		},
	},
}

// Migrate applies migration steps in a loop until no step matches,
// bringing a record at any historical version to CurrentVersion.
// Returns the number of steps applied; zero means the record was
// already current.
func Migrate(u *User) int {
	applied := 0
	for {
		matched := false
		for _, step := range migrations {
			if u.Version == step.From {
				step.Apply(u)
				applied++
				matched = true
				break
			}
		}
		if !matched {
			return applied
		}
	}
}
