// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire types of the warmroom HTTP API.
package datatypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxUserIDLength bounds the userId accepted by the service.
	MaxUserIDLength = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// validate is the validator for request types. Custom tags:
//   - userid: 1..MaxUserIDLength characters of [A-Za-z0-9_.-]
//   - state: a JSON object (not null, not an array or scalar)
var validate *validator.Validate

func init() {
	validate = validator.New()
	mustRegister(validate, "userid", validateUserID)
	mustRegister(validate, "state", validateState)
}

// mustRegister panics when tag cannot be registered, so a broken tag fails
// at startup instead of silently passing every request.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("datatypes: register %q validation: %v", tag, err))
	}
}

func validateUserID(fl validator.FieldLevel) bool {
	return ValidUserID(fl.Field().String())
}

func validateState(fl validator.FieldLevel) bool {
	b := bytes.TrimSpace(fl.Field().Bytes())
	return len(b) > 1 && b[0] == '{' && json.Valid(b)
}

// ValidUserID reports whether id is acceptable as a storage key.
func ValidUserID(id string) bool {
	if id == "" || len(id) > MaxUserIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// Requests
// =============================================================================

// SaveRequest is the body of POST /save.
//
// State is kept as raw JSON: the service stores whatever TraitState the
// client sends and returns it byte for byte on load.
type SaveRequest struct {
	UserID string          `json:"userId" validate:"required,userid"`
	State  json.RawMessage `json:"state" validate:"required,state"`
}

// Validate checks the request and returns a client-facing error.
//
// # Outputs
//
//   - error: nil when valid, else an error whose message names the
//     offending field, for example "userId is required".
func (r *SaveRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return describe(err)
	}
	return nil
}

// =============================================================================
// Responses
// =============================================================================

// SaveResponse acknowledges a save.
type SaveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoadResponse is the body of GET /load/:userId. State is omitted when
// Exists is false.
type LoadResponse struct {
	Exists bool            `json:"exists"`
	State  json.RawMessage `json:"state,omitempty"`
}

// ErrorResponse is the body of every 4xx and 5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Zones  int    `json:"zones"`
}

// =============================================================================
// Helpers
// =============================================================================

var jsonFieldNames = map[string]string{
	"UserID": "userId",
	"State":  "state",
}

// describe turns validator errors into one readable message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := jsonFieldNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "userid":
			msgs = append(msgs, fmt.Sprintf("%s must be 1-%d characters of letters, digits, '_', '-' or '.'", name, MaxUserIDLength))
		case "state":
			msgs = append(msgs, name+" must be a JSON object")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", name, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
