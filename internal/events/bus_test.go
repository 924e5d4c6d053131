package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func promoted(id string) contracts.Event {
	return &contracts.ModelPromoted{ModelID: id, Timestamp: time.Now().UTC()}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(promoted("m1"))

	select {
	case e := <-a:
		assert.Equal(t, "model_promoted", e.EventType())
	case <-time.After(time.Second):
		t.Fatal("subscriber a did not receive event")
	}
	select {
	case e := <-b:
		assert.Equal(t, "model_promoted", e.EventType())
	case <-time.After(time.Second):
		t.Fatal("subscriber b did not receive event")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()

	// Channel closed on cancel.
	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	bus.Publish(promoted("m1"))
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overflow the buffer; Publish must stay non-blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Publish(promoted("m"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The lagging subscriber still receives the most recent events.
	require.NotEmpty(t, len(ch))
}

func TestCloseShutsAllSubscribers(t *testing.T) {
	bus := NewBus(testLogger())
	a, _ := bus.Subscribe()
	b, _ := bus.Subscribe()

	bus.Close()

	_, open := <-a
	assert.False(t, open)
	_, open = <-b
	assert.False(t, open)

	// Idempotent.
	bus.Close()
	bus.Publish(promoted("m1"))
}
