package msdc

import "time"

// Delayer blocks the caller for d.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer waits using time.Sleep.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) {
	time.Sleep(d)
}

// DelayFunc adapts a function to Delayer.
type DelayFunc func(d time.Duration)

func (f DelayFunc) Delay(d time.Duration) {
	f(d)
}

// deadline is a polling budget. It is counted in requested delay, not in
// wall clock time, so a poll loop performs at most budget/step polls no
// matter how long a single Delay actually takes.
type deadline struct {
	delayer Delayer
	step    time.Duration
	left    time.Duration
}

func newDeadline(d Delayer, budget, step time.Duration) *deadline {
	return &deadline{delayer: d, step: step, left: budget}
}

// wait delays one step. It returns false without waiting once the budget
// is spent.
func (dl *deadline) wait() bool {
	if dl.left <= 0 {
		return false
	}

	dl.delayer.Delay(dl.step)
	dl.left -= dl.step
	return true
}

// until polls cond until it holds or the budget is spent.
func (dl *deadline) until(cond func() bool) bool {
	for {
		if cond() {
			return true
		}
		if !dl.wait() {
			return false
		}
	}
}

// Platform controls everything outside the register window of a controller.
// index is the controller index of the session (0 or 1).
type Platform interface {
	// EnableRootClock enables the 26 MHz reference of the MSDC blocks.
	EnableRootClock()
	// PowerOn enables the card supply and the power domain of the controller.
	PowerOn(index int)
	// RoutePins switches the CLK, CMD and DAT0 pads to the controller.
	RoutePins(index int)
}

// NopPlatform is used when clocks, power and pins are already set up.
type NopPlatform struct{}

func (NopPlatform) EnableRootClock() {}
func (NopPlatform) PowerOn(int)      {}
func (NopPlatform) RoutePins(int)    {}
