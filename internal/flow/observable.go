package flow

// Kind tags the operator variant behind an Observable.
type Kind int

const (
	// KindUcast is a single-subscriber buffered source.
	KindUcast Kind = iota + 1
	// KindMulticaster is a hot broadcast source.
	KindMulticaster
	// KindMerge is an N-ary fan-in combinator.
	KindMerge
	// KindJust emits a fixed list of items.
	KindJust
	// KindRange emits consecutive integers.
	KindRange
	// KindEmpty completes without items.
	KindEmpty
	// KindFail fails without items.
	KindFail
)

var kindNames = map[Kind]string{
	KindUcast:       "ucast",
	KindMulticaster: "multicaster",
	KindMerge:       "merge",
	KindJust:        "just",
	KindRange:       "range",
	KindEmpty:       "empty",
	KindFail:        "fail",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Observable is a source of values.
//
// Subscribe attaches out and returns the subscription that links them. The
// returned subscription is disposed if the attempt was rejected or the source
// finished synchronously.
type Observable[T any] interface {
	Subscribe(out Observer[T]) Subscription
	Kind() Kind
}
