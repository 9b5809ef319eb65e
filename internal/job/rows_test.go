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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rr RowReader) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := rr.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestCSVRowReader(t *testing.T) {
	input := "Email, Name ,ACTIVE\na@example.com,Alice,true\nb@example.com,Bob,false\n"
	rr, err := NewRowReader(FormatCSV, strings.NewReader(input))
	require.NoError(t, err)

	rows := readAll(t, rr)
	require.Len(t, rows, 2)

	// Header names are lowercased and trimmed
	assert.Equal(t, "a@example.com", rows[0].Fields["email"])
	assert.Equal(t, "Alice", rows[0].Fields["name"])
	assert.Equal(t, "true", rows[0].Fields["active"])

	// Numbering counts data rows, starting at 1
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, 2, rows[1].Number)
}

func TestCSVRowReaderRaggedRows(t *testing.T) {
	// A short row leaves its trailing columns absent rather than erroring
	input := "email,name\na@example.com\n"
	rr, err := NewRowReader(FormatCSV, strings.NewReader(input))
	require.NoError(t, err)

	rows := readAll(t, rr)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@example.com", rows[0].Fields["email"])
	_, ok := rows[0].Fields["name"]
	assert.False(t, ok)
}

func TestCSVRowReaderEmptyInput(t *testing.T) {
	rr, err := NewRowReader(FormatCSV, strings.NewReader(""))
	require.NoError(t, err)

	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestJSONRowReader(t *testing.T) {
	input := `[
		{"Email": "a@example.com", "name": "Alice", "active": true, "age": 30},
		{"email": "b@example.com", "name": null}
	]`
	rr, err := NewRowReader(FormatJSON, strings.NewReader(input))
	require.NoError(t, err)

	rows := readAll(t, rr)
	require.Len(t, rows, 2)

	// Keys are lowercased, non-string values stringified, null is empty
	assert.Equal(t, "a@example.com", rows[0].Fields["email"])
	assert.Equal(t, "true", rows[0].Fields["active"])
	assert.Equal(t, "30", rows[0].Fields["age"])
	assert.Equal(t, "", rows[1].Fields["name"])

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, 2, rows[1].Number)
}

func TestJSONRowReaderEmptyArray(t *testing.T) {
	rr, err := NewRowReader(FormatJSON, strings.NewReader("[]"))
	require.NoError(t, err)

	_, err = rr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestJSONRowReaderRejectsNonArray(t *testing.T) {
	_, err := NewRowReader(FormatJSON, strings.NewReader(`{"email":"a@example.com"}`))
	assert.Error(t, err)
}

func TestJSONRowReaderBrokenStream(t *testing.T) {
	rr, err := NewRowReader(FormatJSON, strings.NewReader(`[{"email":"a@example.com"},{"email":`))
	require.NoError(t, err)

	_, err = rr.Next()
	require.NoError(t, err)
	_, err = rr.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestNewRowReaderUnknownFormat(t *testing.T) {
	_, err := NewRowReader("xml", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
