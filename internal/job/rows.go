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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Row is one decoded input row. Number is 1-based and counts data rows, not
// the CSV header.
type Row struct {
	Number int
	Fields map[string]string
	Raw    string
}

// RowReader streams decoded rows from a job input. Next returns io.EOF when
// the input is exhausted; any other error means the input as a whole is
// unreadable and the job must fail.
type RowReader interface {
	Next() (Row, error)
}

// NewRowReader builds a streaming reader for the given format
func NewRowReader(format Format, r io.Reader) (RowReader, error) {
	switch format {
	case FormatCSV:
		return newCSVRowReader(r)
	case FormatJSON:
		return newJSONRowReader(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

type csvRowReader struct {
	reader *csv.Reader
	header []string
	row    int
}

func newCSVRowReader(r io.Reader) (*csvRowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		// Empty input: zero data rows, not an error
		return &csvRowReader{reader: cr}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	return &csvRowReader{reader: cr, header: header}, nil
}

func (c *csvRowReader) Next() (Row, error) {
	if c.header == nil {
		return Row{}, io.EOF
	}

	record, err := c.reader.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, fmt.Errorf("failed to read csv record: %w", err)
	}

	c.row++
	fields := make(map[string]string, len(c.header))
	for i, h := range c.header {
		if i < len(record) {
			fields[h] = strings.TrimSpace(record[i])
		}
	}

	return Row{
		Number: c.row,
		Fields: fields,
		Raw:    strings.Join(record, ","),
	}, nil
}

type jsonRowReader struct {
	decoder *json.Decoder
	row     int
	closed  bool
}

func newJSONRowReader(r io.Reader) (*jsonRowReader, error) {
	dec := json.NewDecoder(r)

	token, err := dec.Token()
	if err == io.EOF {
		return &jsonRowReader{decoder: dec, closed: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read json input: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("json input must be an array of objects")
	}

	return &jsonRowReader{decoder: dec}, nil
}

func (j *jsonRowReader) Next() (Row, error) {
	if j.closed {
		return Row{}, io.EOF
	}

	if !j.decoder.More() {
		// Consume the closing bracket so trailing garbage is surfaced
		if _, err := j.decoder.Token(); err != nil && err != io.EOF {
			return Row{}, fmt.Errorf("failed to read json array end: %w", err)
		}
		j.closed = true
		return Row{}, io.EOF
	}

	var raw map[string]any
	if err := j.decoder.Decode(&raw); err != nil {
		return Row{}, fmt.Errorf("failed to decode json row %d: %w", j.row+1, err)
	}

	j.row++
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[strings.ToLower(k)] = val
		case nil:
			fields[strings.ToLower(k)] = ""
		default:
			fields[strings.ToLower(k)] = fmt.Sprintf("%v", val)
		}
	}

	rawBytes, _ := json.Marshal(raw)

	return Row{
		Number: j.row,
		Fields: fields,
		Raw:    string(rawBytes),
	}, nil
}
