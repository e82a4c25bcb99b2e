package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/seantiz/keeper/internal/engine"
)

func drain(ch <-chan string) []string {
	var got []string
	for l := range ch {
		got = append(got, l)
	}
	return got
}

func TestLogBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	lines := []string{"pull applied at version 3", "applied deviceTimezone", "push skipped at version 3"}
	for _, l := range lines {
		b.Publish("j1", l)
	}
	b.Close("j1")

	got := drain(ch)
	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(got), len(lines))
	}
	for i, l := range got {
		if l != lines[i] {
			t.Errorf("line[%d] = %q, want %q", i, l, lines[i])
		}
	}
}

func TestLogBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	ch1, unsub1 := b.Subscribe("j1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("j1")
	defer unsub2()

	b.Publish("j1", "hello")
	b.Close("j1")

	if got := drain(ch1); len(got) != 1 || got[0] != "hello" {
		t.Errorf("subscriber 1 got %v, want [hello]", got)
	}
	if got := drain(ch2); len(got) != 1 || got[0] != "hello" {
		t.Errorf("subscriber 2 got %v, want [hello]", got)
	}
}

func TestLogBrokerCloseClosesChannels(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	b.Close("j1")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close()")
	}
}

func TestLogBrokerLateSubscriberReplaysBacklog(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	b.Publish("j1", "line 1")

	ch, unsub := b.Subscribe("j1")
	defer unsub()

	b.Publish("j1", "line 2")
	b.Close("j1")

	got := drain(ch)
	if len(got) != 2 || got[0] != "line 1" || got[1] != "line 2" {
		t.Errorf("late subscriber got %v, want [line 1 line 2]", got)
	}
}

func TestLogBrokerSubscribeAfterClose(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	b.Publish("j1", "early")
	b.Close("j1")

	ch, unsub := b.Subscribe("j1")
	defer unsub()

	got := drain(ch)
	if len(got) != 1 || got[0] != "early" {
		t.Errorf("subscriber after close got %v, want [early]", got)
	}
}

func TestLogBrokerBacklogIsBounded(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	for i := range 300 {
		b.Publish("j1", fmt.Sprintf("line %d", i))
	}
	b.Close("j1")

	ch, _ := b.Subscribe("j1")
	got := drain(ch)
	if len(got) != 256 {
		t.Fatalf("backlog has %d lines, want 256", len(got))
	}
	if got[0] != "line 44" {
		t.Errorf("oldest kept line = %q, want %q", got[0], "line 44")
	}
}

func TestLogBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewLogBroker()
	b.Open("j1")
	ch, unsub := b.Subscribe("j1")
	unsub()

	b.Publish("j1", "after unsub")
	b.Close("j1")

	select {
	case l, ok := <-ch:
		if ok {
			t.Errorf("got unexpected line %q after unsubscribe", l)
		}
	default:
	}
}

func TestLogBrokerPublishToUnknownJobIsNoop(t *testing.T) {
	b := engine.NewLogBroker()
	b.Publish("nonexistent", "line")
	b.Close("nonexistent")

	ch, _ := b.Subscribe("nonexistent")
	if got := drain(ch); len(got) != 0 {
		t.Errorf("got %v, want no lines", got)
	}
}

func TestLogBrokerEvictsOldestClosedTopic(t *testing.T) {
	b := engine.NewLogBroker()
	for i := range 513 {
		id := fmt.Sprintf("j%d", i)
		b.Open(id)
		b.Publish(id, "line from "+id)
		b.Close(id)
	}

	if b.Known("j0") {
		t.Error("oldest closed topic was not evicted")
	}
	if got := drain(mustSubscribe(b, "j0")); len(got) != 0 {
		t.Errorf("evicted topic replayed %v, want nothing", got)
	}
	if b.Known("j0") {
		t.Error("subscribing recreated an evicted topic")
	}

	for _, id := range []string{"j1", "j512"} {
		if got := drain(mustSubscribe(b, id)); len(got) != 1 || got[0] != "line from "+id {
			t.Errorf("%s replayed %v", id, got)
		}
	}
}

func TestLogBrokerSubscribeUnopenedTopicIsClosed(t *testing.T) {
	b := engine.NewLogBroker()
	ch, unsub := b.Subscribe("never-opened")
	defer unsub()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("got a line from an unopened topic")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber to an unopened topic was left hanging")
	}
	if b.Known("never-opened") {
		t.Error("Subscribe created a topic")
	}
}

func mustSubscribe(b *engine.LogBroker, id string) <-chan string {
	ch, _ := b.Subscribe(id)
	return ch
}
