package flow

import (
	"testing"

	"github.com/stretchr/testify/mock"
)

func newLoop(t *testing.T, opts ...Option) *RunLoop {
	t.Helper()
	loop := NewRunLoop(opts...)
	t.Cleanup(loop.Dispose)
	return loop
}

// MockObserver is a testify mock implementing Observer.
type MockObserver[T any] struct {
	mock.Mock
}

func (m *MockObserver[T]) OnSubscribe(sub Subscription) {
	m.Called(sub)
}

func (m *MockObserver[T]) OnNext(item T) {
	m.Called(item)
}

func (m *MockObserver[T]) OnError(err error) {
	m.Called(err)
}

func (m *MockObserver[T]) OnComplete() {
	m.Called()
}

// requestOnSubscribe configures m to request n items when subscribed.
func requestOnSubscribe[T any](m *MockObserver[T], n int) {
	m.On("OnSubscribe", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(Subscription).Request(n)
	}).Once()
}
