// SPDX-License-Identifier: MIT

package relay

import (
	"strings"

	"github.com/chatrelay/chatrelay/internal/upstream"
)

// Accumulator assembles the visible response text of one relay session from
// incremental part updates. Only part updates carry text; every other event
// is counted but contributes nothing.
type Accumulator struct {
	text   strings.Builder
	events int
	parts  int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add records one forwarded event.
func (a *Accumulator) Add(ev upstream.Event) {
	a.events++
	if ev.Kind != upstream.KindPartUpdated || ev.Delta == "" {
		return
	}
	a.parts++
	a.text.WriteString(ev.Delta)
}

// Text returns the text assembled so far.
func (a *Accumulator) Text() string { return a.text.String() }

// Events returns the number of events added.
func (a *Accumulator) Events() int { return a.events }

// TextParts returns the number of non-empty deltas added.
func (a *Accumulator) TextParts() int { return a.parts }
