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

import "time"

// progressTracker bounds how often job counters are persisted so a large
// import does not turn every row into a write against the job record.
type progressTracker struct {
	flushRows     int
	flushInterval time.Duration

	rowsSinceFlush int
	lastFlush      time.Time
}

func newProgressTracker(flushRows int, flushInterval time.Duration) *progressTracker {
	if flushRows <= 0 {
		flushRows = 100
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &progressTracker{
		flushRows:     flushRows,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
	}
}

// observe records one processed row and reports whether counters should be
// flushed now.
func (t *progressTracker) observe() bool {
	t.rowsSinceFlush++
	return t.rowsSinceFlush >= t.flushRows || time.Since(t.lastFlush) >= t.flushInterval
}

// flushed resets the cadence after a successful persist.
func (t *progressTracker) flushed() {
	t.rowsSinceFlush = 0
	t.lastFlush = time.Now()
}
