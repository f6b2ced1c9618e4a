package pubsub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic_PublishOrder(t *testing.T) {
	topic := NewTopic[int]()

	var got []string
	topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })

	topic.Publish(1)

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, topic.Len())
}

func TestTopic_Unsubscribe(t *testing.T) {
	topic := NewTopic[string]()

	var got []string
	unsub := topic.Subscribe(func(v string) { got = append(got, v) })

	topic.Publish("first")
	unsub()
	unsub()
	topic.Publish("second")

	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 0, topic.Len())
}

func TestTopic_UnsubscribeDuringPublish(t *testing.T) {
	topic := NewTopic[int]()

	var calls int
	var unsub Unsubscribe
	unsub = topic.Subscribe(func(int) {
		calls++
		unsub()
	})
	var other int
	topic.Subscribe(func(int) { other++ })

	topic.Publish(1)
	topic.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestTopic_NilHandler(t *testing.T) {
	topic := NewTopic[int]()
	unsub := topic.Subscribe(nil)
	unsub()
	assert.Equal(t, 0, topic.Len())
}

func TestTopic_ConcurrentSubscribe(t *testing.T) {
	topic := NewTopic[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := topic.Subscribe(func(int) {})
			topic.Publish(1)
			unsub()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, topic.Len())
}
