// Copyright 2026 The Adminkit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package job

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/adminkit/adminkit/internal/id"
	"github.com/adminkit/adminkit/internal/identity"
)

// EntityUsers is the entity type handled by the user importer/exporter
const EntityUsers = "users"

// UserImporter imports user rows. The natural key for duplicate detection is
// (org_id, email).
type UserImporter struct {
	repo identity.Repository
}

// NewUserImporter creates an importer writing to the user repository
func NewUserImporter(repo identity.Repository) *UserImporter {
	return &UserImporter{repo: repo}
}

// ImportRow validates and applies one user row. Validation runs before
// duplicate detection, so an invalid duplicate row is reported as a
// validation error, not a duplicate.
func (im *UserImporter) ImportRow(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error) {
	email := row.Fields["email"]
	name := row.Fields["name"]
	result := RowResult{Identifier: email}

	if email == "" {
		return result, &RowError{Type: ErrorTypeValidation, Column: "email", Message: "email is required"}
	}
	if !identity.IsValidEmail(email) {
		return result, &RowError{Type: ErrorTypeValidation, Column: "email", Message: fmt.Sprintf("invalid email address: %s", email)}
	}
	if name == "" {
		return result, &RowError{Type: ErrorTypeValidation, Column: "name", Message: "name is required"}
	}

	existing, err := im.repo.GetByEmail(ctx, orgID, email)
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		return result, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	if existing != nil {
		switch strategy {
		case DuplicateSkip:
			result.Outcome = OutcomeSkipped
			return result, nil
		case DuplicateUpdate:
			existing.Name = name
			existing.Active = parseActive(row.Fields["active"])
			existing.UpdatedAt = time.Now()
			if err := im.repo.Update(ctx, existing); err != nil {
				return result, fmt.Errorf("failed to update existing user: %w", err)
			}
			result.Outcome = OutcomeUpdated
			return result, nil
		case DuplicateCreateNew:
			// fall through to create an additional record
		default:
			result.Outcome = OutcomeSkipped
			return result, nil
		}
	}

	now := time.Now()
	user := &identity.User{
		ID:        id.NewUUIDv7(),
		OrgID:     orgID,
		Email:     email,
		Name:      name,
		Active:    parseActive(row.Fields["active"]),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := im.repo.Create(ctx, user); err != nil {
		return result, fmt.Errorf("failed to create user: %w", err)
	}

	result.Outcome = OutcomeCreated
	return result, nil
}

// parseActive treats anything but an explicit "false"/"0"/"no" as active
func parseActive(s string) bool {
	switch s {
	case "false", "0", "no", "inactive":
		return false
	default:
		return true
	}
}

// UserExporter streams an organization's users
type UserExporter struct {
	repo identity.Repository
}

// NewUserExporter creates an exporter reading from the user repository
func NewUserExporter(repo identity.Repository) *UserExporter {
	return &UserExporter{repo: repo}
}

// Export writes the organization's users to w, ordered by email
func (ex *UserExporter) Export(ctx context.Context, orgID string, format Format, w io.Writer) (int, error) {
	users, err := ex.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	switch format {
	case FormatCSV:
		return ex.exportCSV(ctx, users, w)
	case FormatJSON:
		return ex.exportJSON(ctx, users, w)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func (ex *UserExporter) exportCSV(ctx context.Context, users []*identity.User, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email", "name", "active", "created_at"}); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}

	rows := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		record := []string{u.Email, u.Name, fmt.Sprintf("%t", u.Active), u.CreatedAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(record); err != nil {
			return rows, fmt.Errorf("failed to write csv row: %w", err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush csv: %w", err)
	}
	return rows, nil
}

type exportedUser struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (ex *UserExporter) exportJSON(ctx context.Context, users []*identity.User, w io.Writer) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	rows := 0
	for i, u := range users {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return rows, err
			}
		}
		if err := enc.Encode(exportedUser{
			Email:     u.Email,
			Name:      u.Name,
			Active:    u.Active,
			CreatedAt: u.CreatedAt.UTC(),
		}); err != nil {
			return rows, fmt.Errorf("failed to encode user: %w", err)
		}
		rows++
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return rows, err
	}
	return rows, nil
}
