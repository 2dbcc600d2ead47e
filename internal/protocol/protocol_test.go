package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTopicExists, CodeExists},
		{fmt.Errorf("create %q: %w", "news", ErrTopicNotFound), CodeNotFound},
		{ErrNotListening, CodeNotListening},
		{fmt.Errorf("%w: empty topic", ErrBadRequest), CodeBadRequest},
		{errors.New("disk full"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestEnvelopeErr(t *testing.T) {
	ok := Envelope{Type: MsgResponse, OK: true}
	if err := ok.Err(); err != nil {
		t.Fatalf("Err() on success = %v", err)
	}

	for code, sentinel := range codeErrors {
		env := Envelope{Type: MsgResponse, Op: OpListen, Topic: "news", Code: code, Error: "ignored"}
		if err := env.Err(); !errors.Is(err, sentinel) {
			t.Errorf("code %q: Err() = %v, want %v", code, err, sentinel)
		}
	}

	unknown := Envelope{Type: MsgResponse, Op: OpPost, Topic: "news", Error: "boom"}
	err := unknown.Err()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Err() for unknown code = %v", err)
	}
}

func TestOpValid(t *testing.T) {
	for _, op := range []Op{OpCreate, OpListen, OpStop, OpDelete, OpPost} {
		if !op.Valid() {
			t.Errorf("%q should be valid", op)
		}
	}
	if Op("subscribe").Valid() {
		t.Error("unknown op reported valid")
	}
}

func TestEnvelopeOmitsUnusedFields(t *testing.T) {
	data, err := json.Marshal(Envelope{Type: MsgTopicDeleted, Topic: "news"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"type":"topic_deleted","topic":"news"}` {
		t.Errorf("json = %s", got)
	}
}
