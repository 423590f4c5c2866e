// Package cache holds small concurrent caches and counters.
package cache

import "sync/atomic"

// SafeCounter is a non-negative gauge that remembers its peak.
type SafeCounter struct {
	v    atomic.Int64
	peak atomic.Int64
}

func (c *SafeCounter) Value() int {
	return int(c.v.Load())
}

// Peak returns the highest value seen since the last Set.
func (c *SafeCounter) Peak() int {
	return int(c.peak.Load())
}

// Set overwrites the value and resets the peak to it.
func (c *SafeCounter) Set(v int) {
	c.v.Store(int64(v))
	c.peak.Store(int64(v))
}

// Inc increments the counter and returns the new value.
func (c *SafeCounter) Inc() int {
	n := c.v.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return int(n)
		}
	}
}

// Dec decrements the counter, never below zero, and returns the new value.
func (c *SafeCounter) Dec() int {
	for {
		cur := c.v.Load()
		if cur == 0 {
			return 0
		}
		if c.v.CompareAndSwap(cur, cur-1) {
			return int(cur - 1)
		}
	}
}
