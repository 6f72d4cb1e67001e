// SPDX-License-Identifier: MIT

// Package config provides configuration management for chatrelay.
//
// Precedence is ENV > file > defaults. Files may be YAML, JSON or JSONC and are
// parsed strictly: unknown keys are rejected. A Holder keeps the active
// configuration and reloads it when the file changes or on SIGHUP.
package config
