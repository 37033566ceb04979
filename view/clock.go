package view

import "time"

// FrameToken identifies a scheduled frame callback so it can be cancelled.
type FrameToken int

// Clock is the rendering-clock source driving animations and fades. A
// callback fires at most once per request; animations re-arm themselves.
// Implementations must deliver callbacks on the engine's single logical
// thread.
type Clock interface {
	Now() time.Time
	RequestFrame(cb func(now time.Time)) FrameToken
	CancelFrame(token FrameToken)
}

type pendingFrame struct {
	token FrameToken
	cb    func(now time.Time)
}

// ManualClock is a Clock stepped explicitly, for tests and headless runs.
// Step fires everything scheduled before the call; callbacks that re-arm
// run on the next Step.
type ManualClock struct {
	pending   []pendingFrame
	nextToken FrameToken
	now       time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) RequestFrame(cb func(now time.Time)) FrameToken {
	c.nextToken++
	c.pending = append(c.pending, pendingFrame{token: c.nextToken, cb: cb})
	return c.nextToken
}

func (c *ManualClock) CancelFrame(token FrameToken) {
	for i := range c.pending {
		if c.pending[i].token == token {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return
		}
	}
}

// Step advances the clock by d and fires the callbacks that were pending
// when it was called.
func (c *ManualClock) Step(d time.Duration) {
	c.now = c.now.Add(d)
	due := c.pending
	c.pending = nil
	for _, f := range due {
		f.cb(c.now)
	}
}

// StepUntilIdle keeps stepping in d increments until nothing is scheduled,
// up to a sanity limit.
func (c *ManualClock) StepUntilIdle(d time.Duration) {
	for i := 0; i < 10000 && len(c.pending) > 0; i++ {
		c.Step(d)
	}
}

func (c *ManualClock) Pending() int {
	return len(c.pending)
}

func (c *ManualClock) Now() time.Time {
	return c.now
}
