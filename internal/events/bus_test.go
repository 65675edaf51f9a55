package events

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestBus_SubscribeOrder(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	bus.Subscribe(KeyUser, func(Event) { got = append(got, "first") })
	bus.SubscribeAll(func(Event) { got = append(got, "all") })
	bus.Subscribe(KeyUser, func(Event) { got = append(got, "second") })

	bus.Publish(Event{Key: KeyUser})

	want := []string{"first", "second", "all"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
}

func TestBus_PublishOnlyMatchingKey(t *testing.T) {
	bus := NewBus(nil)

	var users, songs int
	bus.Subscribe(KeyUser, func(Event) { users++ })
	bus.Subscribe(KeySong, func(Event) { songs++ })

	bus.Publish(Event{Key: KeyUser})
	bus.Publish(Event{Key: KeyUser})
	bus.Publish(Event{Key: KeyAlbum})

	if users != 2 || songs != 0 {
		t.Errorf("users=%d songs=%d, want 2 and 0", users, songs)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var n int
	unsubscribe := bus.Subscribe(KeyPing, func(Event) { n++ })
	bus.Publish(Event{Key: KeyPing})
	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Key: KeyPing})

	if n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
	if s := bus.Stats(); s.Subscribers != 0 {
		t.Errorf("Subscribers = %d, want 0", s.Subscribers)
	}
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)

	var late int
	var unsubscribeSelf func()
	unsubscribeSelf = bus.Subscribe(KeyUser, func(Event) {
		bus.Subscribe(KeyUser, func(Event) { late++ })
		unsubscribeSelf()
	})

	bus.Publish(Event{Key: KeyUser})
	if late != 0 {
		t.Errorf("subscriber added during publish received the same event")
	}

	bus.Publish(Event{Key: KeyUser})
	if late != 1 {
		t.Errorf("late subscriber called %d times, want 1", late)
	}
}

func TestBus_StampsReceivedAt(t *testing.T) {
	bus := NewBus(nil)

	var got Event
	bus.Subscribe(KeyState, func(e Event) { got = e })
	bus.Publish(Event{Key: KeyState})

	if got.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Publish(Event{Key: KeyState, ReceivedAt: at})
	if !got.ReceivedAt.Equal(at) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, at)
	}
}

func TestBus_Stats(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(KeyUser, func(Event) {})
	bus.SubscribeAll(func(Event) {})

	bus.Publish(Event{Key: KeyUser})
	bus.Publish(Event{Key: KeySong})

	s := bus.Stats()
	if s.Published[KeyUser] != 1 || s.Published[KeySong] != 1 {
		t.Errorf("Published = %v", s.Published)
	}
	if s.Delivered != 3 {
		t.Errorf("Delivered = %d, want 3", s.Delivered)
	}
	if s.Subscribers != 2 {
		t.Errorf("Subscribers = %d, want 2", s.Subscribers)
	}
}

func TestBus_BufferFiltersKeys(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Buffer(4, KeySchedCurrent, KeyUser)
	defer sub.Close()

	bus.Publish(Event{Key: KeySchedCurrent, Payload: json.RawMessage(`{"id":1}`)})
	bus.Publish(Event{Key: KeySong})
	bus.Publish(Event{Key: KeyUser})

	got := sub.Events().DrainTo(0)
	if len(got) != 2 {
		t.Fatalf("buffered %d events, want 2", len(got))
	}
	if got[0].Key != KeySchedCurrent || got[1].Key != KeyUser {
		t.Errorf("keys = %s, %s", got[0].Key, got[1].Key)
	}
}

func TestBus_BufferAllKeysAndClose(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Buffer(4)

	bus.Publish(Event{Key: KeySong})
	sub.Close()
	sub.Close()
	bus.Publish(Event{Key: KeyAlbum})

	if n := sub.Events().Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
	if s := bus.Stats(); s.Subscribers != 0 {
		t.Errorf("Subscribers = %d after Close, want 0", s.Subscribers)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var n int
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(Event{Key: KeyPing})
			}
		}()
	}
	wg.Wait()

	if n != 1000 {
		t.Errorf("handler called %d times, want 1000", n)
	}
}

func TestEvent_Decode(t *testing.T) {
	e := Event{Key: KeySchedCurrent, Payload: json.RawMessage(`{"id":42,"sid":1}`)}

	type sched struct {
		ID  int `json:"id"`
		SID int `json:"sid"`
	}
	got, err := Decode[sched](e)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.ID != 42 || got.SID != 1 {
		t.Errorf("Decode = %+v", got)
	}

	if _, err := Decode[sched](Event{Key: KeyState}); err == nil {
		t.Error("Decode of empty payload succeeded")
	}
}

func TestEvent_CarriesError(t *testing.T) {
	bus := NewBus(nil)
	cause := errors.New("socket closed")

	var got error
	bus.Subscribe(KeyError, func(e Event) { got = e.Err })
	bus.Publish(Event{Key: KeyError, Err: cause})

	if !errors.Is(got, cause) {
		t.Errorf("Err = %v, want %v", got, cause)
	}
}
