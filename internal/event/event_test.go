package event

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(TopicListenStopped)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"topic_listen_stopped"` {
		t.Errorf("Marshal = %s, want %q", data, "topic_listen_stopped")
	}

	var k Kind
	if err := json.Unmarshal([]byte(`"message_received"`), &k); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if k != MessageReceived {
		t.Errorf("Unmarshal = %v, want %v", k, MessageReceived)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &k); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKindStringUnknown(t *testing.T) {
	if got := Kind(99).String(); got != "unknown" {
		t.Errorf("String() = %q, want %q", got, "unknown")
	}
}

func TestFailedAlwaysCarriesCause(t *testing.T) {
	e := Failed(TopicCreated, "news", nil)
	if e.Success {
		t.Fatal("failed event reported success")
	}
	if e.Err == nil {
		t.Fatal("failed event with nil cause should get a generic cause")
	}
	if e.Cause() != e.Err {
		t.Error("Cause() should return Err")
	}
}

func TestSucceededHasNoCause(t *testing.T) {
	e := Succeeded(TopicListened, "news")
	if !errors.Is(e.Cause(), ErrNoCause) {
		t.Errorf("Cause() = %v, want ErrNoCause", e.Cause())
	}
}

func TestFromResult(t *testing.T) {
	boom := errors.New("boom")
	if e := FromResult(TopicDeleted, "a", nil); !e.Success || e.Err != nil {
		t.Errorf("FromResult(nil) = %+v, want success", e)
	}
	if e := FromResult(TopicDeleted, "a", boom); e.Success || !errors.Is(e.Err, boom) {
		t.Errorf("FromResult(boom) = %+v, want failure wrapping boom", e)
	}
}

func TestHandlersDispatch(t *testing.T) {
	var got []Kind
	record := func(e Event) { got = append(got, e.Kind) }
	h := Handlers{Listened: record, Deleted: record}

	for _, k := range []Kind{TopicCreated, TopicListened, TopicListenStopped, TopicDeleted, MessageReceived} {
		h.OnEvent(Succeeded(k, "t"))
	}

	if len(got) != 2 || got[0] != TopicListened || got[1] != TopicDeleted {
		t.Errorf("dispatched kinds = %v, want [topic_listened topic_deleted]", got)
	}
}
