// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge's YAML configuration file.
package config
