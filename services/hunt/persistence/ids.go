// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package persistence

import (
	"strings"

	"github.com/google/uuid"
)

// UserIDPrefix starts every minted user id.
const UserIDPrefix = "user_"

// NewUserID mints a fresh opaque user id.
func NewUserID() string {
	return UserIDPrefix + uuid.NewString()
}

// IsUserID reports whether id has the shape NewUserID produces.
func IsUserID(id string) bool {
	rest, ok := strings.CutPrefix(id, UserIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
