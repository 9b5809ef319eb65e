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
	"io"
)

// RowOutcome is the disposition of one successfully processed row
type RowOutcome int

const (
	// OutcomeCreated means a new record was written
	OutcomeCreated RowOutcome = iota
	// OutcomeUpdated means an existing duplicate was overwritten
	OutcomeUpdated
	// OutcomeSkipped means a duplicate was left untouched
	OutcomeSkipped
)

// RowResult reports what an importer did with one row
type RowResult struct {
	Outcome RowOutcome
	// Identifier is the row's natural key, used in error report entries
	Identifier string
}

// RowError is a categorized row-level failure. Importers return it for
// validation problems; any other error is treated as a system error. Either
// way the row is counted and the job continues.
type RowError struct {
	Type    ErrorType
	Column  string
	Message string
}

func (e *RowError) Error() string {
	return e.Message
}

// Importer applies one input row to the store for a specific entity type,
// honoring the job's duplicate strategy.
type Importer interface {
	ImportRow(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error)
}

// Exporter streams an organization's records of one entity type to w in the
// requested format, returning the number of rows written. Implementations
// must observe ctx between rows.
type Exporter interface {
	Export(ctx context.Context, orgID string, format Format, w io.Writer) (int, error)
}
