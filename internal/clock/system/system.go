// Package system provides the wall clock.
package system

import (
	"time"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

// Clock implements harvest.Clock using time.Now.
type Clock struct{}

var _ harvest.Clock = Clock{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
