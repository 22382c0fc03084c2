package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s *Subscription) []Event {
	var got []Event
	for {
		select {
		case e, ok := <-s.C:
			if !ok {
				return got
			}
			got = append(got, e)
		default:
			return got
		}
	}
}

func TestPublishDeliversToInterestedSubscribers(t *testing.T) {
	bus := NewBus()
	all := bus.Subscribe()
	deletes := bus.Subscribe(ExpensesDeleted)

	bus.Publish(ExpensesChanged)
	bus.Publish(ExpensesDeleted)

	assert.Equal(t, []Event{ExpensesChanged, ExpensesDeleted}, drain(all))
	assert.Equal(t, []Event{ExpensesDeleted}, drain(deletes))
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(ExpensesChanged)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(ExpensesChanged)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	got := drain(sub)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), len(All))
}

func TestBurstLeavesBoundedPendingDeliveries(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	for i := 0; i < 5; i++ {
		bus.Publish(ExpensesChanged)
	}
	assert.Equal(t, []Event{ExpensesChanged, ExpensesChanged}, drain(sub))

	for i := 0; i < 5; i++ {
		bus.Publish(ExpensesDeleted)
		bus.Publish(ExpensesChanged)
	}
	assert.Len(t, drain(sub), len(All))

	bus.Publish(ExpensesDeleted)
	assert.Equal(t, []Event{ExpensesDeleted}, drain(sub), "drained buffer accepts new events")
}

func TestClosedSubscriptionReceivesNothing(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	sub.Close()
	sub.Close()

	bus.Publish(ExpensesChanged)
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Close()
	bus.Publish(ExpensesDeleted)

	_, ok := sub.Next(context.Background())
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestNextHonoursContext(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := sub.Next(ctx)
	assert.False(t, ok)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := bus.Subscribe()
			bus.Publish(ExpensesChanged)
			s.Close()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(ExpensesDeleted)
		}()
	}
	wg.Wait()
	bus.Close()
}

func TestEventValid(t *testing.T) {
	assert.True(t, ExpensesChanged.Valid())
	assert.True(t, ExpensesDeleted.Valid())
	assert.False(t, Event("other").Valid())
}

type countingPublisher struct{ got []Event }

func (c *countingPublisher) Publish(e Event) { c.got = append(c.got, e) }

func TestFanout(t *testing.T) {
	a, b := &countingPublisher{}, &countingPublisher{}
	Fanout{a, nil, b}.Publish(ExpensesDeleted)
	assert.Equal(t, []Event{ExpensesDeleted}, a.got)
	assert.Equal(t, []Event{ExpensesDeleted}, b.got)
}
