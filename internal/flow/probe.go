package flow

// ProbePolicy controls how a Probe drives its subscription.
type ProbePolicy int

const (
	// ProbeAuto requests Unbounded on subscribe.
	ProbeAuto ProbePolicy = iota
	// ProbePassive never requests on its own; call Request explicitly.
	ProbePassive
	// ProbeCancel requests Unbounded on subscribe and disposes its
	// subscription in the first OnNext.
	ProbeCancel
)

var probePolicyNames = map[ProbePolicy]string{
	ProbeAuto:    "auto",
	ProbePassive: "passive",
	ProbeCancel:  "cancel",
}

func (p ProbePolicy) String() string {
	if name, ok := probePolicyNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParseProbePolicy maps "auto", "passive" or "cancel" to a policy. The empty
// string means ProbeAuto.
func ParseProbePolicy(s string) (ProbePolicy, bool) {
	if s == "" {
		return ProbeAuto, true
	}
	for p, name := range probePolicyNames {
		if name == s {
			return p, true
		}
	}
	return 0, false
}

// ProbeState is the lifecycle state of a Probe.
type ProbeState int

const (
	ProbeIdle ProbeState = iota
	ProbeSubscribed
	ProbeCompleted
	ProbeAborted
	ProbeDisposed
)

func (s ProbeState) String() string {
	switch s {
	case ProbeIdle:
		return "idle"
	case ProbeSubscribed:
		return "subscribed"
	case ProbeCompleted:
		return "completed"
	case ProbeAborted:
		return "aborted"
	case ProbeDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Probe is a recording observer for tests and scenario runs.
//
// Events that arrive after a terminal event or after disposal are counted in
// Late instead of being recorded. Not safe for concurrent use; a probe lives
// on the coordinator of the source it observes.
type Probe[T any] struct {
	policy ProbePolicy
	state  ProbeState
	sub    Subscription

	Items []T
	Err   error

	// Subscribes counts OnSubscribe calls.
	Subscribes int
	// Terminals counts OnError and OnComplete calls, late ones included.
	Terminals int
	// Late counts events delivered after the probe stopped listening.
	Late int
}

// NewProbe creates a probe with the given policy.
func NewProbe[T any](policy ProbePolicy) *Probe[T] {
	return &Probe[T]{policy: policy}
}

func (p *Probe[T]) OnSubscribe(sub Subscription) {
	p.Subscribes++
	if p.state != ProbeIdle {
		p.Late++
		sub.Dispose()
		return
	}
	p.sub = sub
	p.state = ProbeSubscribed
	if p.policy != ProbePassive {
		sub.Request(Unbounded)
	}
}

func (p *Probe[T]) OnNext(item T) {
	if p.state != ProbeSubscribed {
		p.Late++
		return
	}
	p.Items = append(p.Items, item)
	if p.policy == ProbeCancel {
		p.Dispose()
	}
}

func (p *Probe[T]) OnError(err error) {
	p.Terminals++
	if !p.listening() {
		p.Late++
		return
	}
	p.Err = err
	p.state = ProbeAborted
}

func (p *Probe[T]) OnComplete() {
	p.Terminals++
	if !p.listening() {
		p.Late++
		return
	}
	p.state = ProbeCompleted
}

// listening reports whether a terminal event is still acceptable. A rejected
// subscribe delivers its terminal event to an idle probe.
func (p *Probe[T]) listening() bool {
	return p.state == ProbeIdle || p.state == ProbeSubscribed
}

// Request forwards n to the subscription, if any.
func (p *Probe[T]) Request(n int) {
	if p.sub != nil {
		p.sub.Request(n)
	}
}

// Dispose disposes the subscription and stops recording.
func (p *Probe[T]) Dispose() {
	if p.sub != nil {
		p.sub.Dispose()
	}
	if p.listening() {
		p.state = ProbeDisposed
	}
}

// State returns the lifecycle state.
func (p *Probe[T]) State() ProbeState {
	return p.state
}

// Policy returns the probe's policy.
func (p *Probe[T]) Policy() ProbePolicy {
	return p.policy
}

// Subscription returns the subscription handed to OnSubscribe, or nil.
func (p *Probe[T]) Subscription() Subscription {
	return p.sub
}

// Completed reports whether OnComplete was recorded.
func (p *Probe[T]) Completed() bool {
	return p.state == ProbeCompleted
}
