package session

import (
	"math"
	"sync/atomic"
)

// Clock holds the latest game time reported by the engine. Sessions
// advance it on every tick; the autosaver reads it.
type Clock struct {
	bits atomic.Uint64
}

func (c *Clock) Set(now float64) {
	for {
		old := c.bits.Load()
		if math.Float64frombits(old) >= now {
			return
		}
		if c.bits.CompareAndSwap(old, math.Float64bits(now)) {
			return
		}
	}
}

func (c *Clock) Now() float64 { return math.Float64frombits(c.bits.Load()) }
