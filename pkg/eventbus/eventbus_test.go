package eventbus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ ID string }

func TestPublish_DeliversToMatchingSubscriber(t *testing.T) {
	bus := NewEventPublisher(logrus.New())
	var got []string
	bus.Subscribe(func(e testEvent) { got = append(got, e.ID) })

	bus.Publish(testEvent{ID: "a"})
	bus.Publish(testEvent{ID: "b"})

	require.Equal(t, []string{"a", "b"}, got)
}

func TestPublish_SkipsNonMatchingSignature(t *testing.T) {
	bus := NewEventPublisher(logrus.New())
	called := false
	bus.Subscribe(func(s string) { called = true })

	bus.Publish(testEvent{ID: "a"})
	require.False(t, called)
}

func TestPublish_RecoversFromPanickingHandler(t *testing.T) {
	bus := NewEventPublisher(logrus.New())
	delivered := false
	bus.Subscribe(func(e testEvent) { panic("boom") })
	bus.Subscribe(func(e testEvent) { delivered = true })

	require.NotPanics(t, func() { bus.Publish(testEvent{ID: "a"}) })
	require.True(t, delivered)
}

func TestUnsubscribeAndClear(t *testing.T) {
	bus := NewEventPublisher(logrus.New())
	h := func(e testEvent) {}
	bus.Subscribe(h)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Clear()
	require.Equal(t, 0, bus.SubscribersCount())
}
