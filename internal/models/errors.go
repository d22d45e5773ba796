// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the version lifecycle. Callers match with errors.Is;
// store and gateway errors wrap the underlying cause.
var (
	// ErrStoreUnavailable reports a read or write failure against the version table.
	ErrStoreUnavailable = errors.New("version store unavailable")
	// ErrNotFound reports that a referenced version (or route) does not exist.
	ErrNotFound = errors.New("version not found")
	// ErrValidationSkipped reports input rejected before any network call.
	ErrValidationSkipped = errors.New("nothing to submit")
	// ErrNoSelection reports a publish attempt with no version selected.
	ErrNoSelection = errors.New("select a version first")
	// ErrBusy reports that a generation or save is already in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrGateway matches every *GatewayError via errors.Is.
	ErrGateway = errors.New("generation gateway error")
	// ErrPromptFlagged reports a prompt rejected by moderation.
	ErrPromptFlagged = errors.New("prompt flagged by moderation")
)

// GatewayError describes a failed call to the generation service.
type GatewayError struct {
	Op         string // "generate", "publish", "preview"
	StatusCode int    // HTTP status when the service answered, else 0
	Timeout    bool
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("gateway %s: timeout", e.Op)
	case e.StatusCode != 0:
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrGateway) true for any gateway error.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }
