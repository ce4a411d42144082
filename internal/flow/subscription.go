package flow

import "math"

// Unbounded is the demand value for "no limit". Requesting it (or accumulating
// enough demand to reach it) turns off backpressure for that subscription.
const Unbounded = math.MaxInt

// Subscription is the back-channel from an observer to its producer.
//
// Request adds n to the outstanding demand; values of n <= 0 are ignored.
// Request and Dispose on a disposed subscription are no-ops.
type Subscription interface {
	Disposable
	Request(n int)
}

// addDemand adds n to cur, saturating at Unbounded.
func addDemand(cur, n int) int {
	if n <= 0 {
		return cur
	}
	if cur >= Unbounded-n {
		return Unbounded
	}
	return cur + n
}

// takeDemand consumes one unit of demand. Unbounded demand is never consumed.
func takeDemand(cur int) int {
	if cur == Unbounded || cur == 0 {
		return cur
	}
	return cur - 1
}

// closedSubscription is returned when a subscribe attempt fails or the
// observer was finished synchronously.
type closedSubscription struct{}

func (closedSubscription) Request(int)    {}
func (closedSubscription) Dispose()       {}
func (closedSubscription) Disposed() bool { return true }

// DisposedSubscription returns a subscription that is already disposed.
func DisposedSubscription() Subscription {
	return closedSubscription{}
}
