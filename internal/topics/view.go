package topics

import "github.com/yamca/yamca/internal/event"

// View combines the topic set with the unread tracker and applies events to
// both.
type View struct {
	Topics *Set
	Unread *Unread
}

// NewView returns an empty view.
func NewView() *View {
	return &View{Topics: NewSet(), Unread: NewUnread()}
}

// Seed replaces the topic set with a server-provided snapshot and clears
// unread counters for topics that are no longer present.
func (v *View) Seed(names []string) {
	v.Topics.ReplaceAll(names)
	for topic := range v.Unread.counts {
		if !v.Topics.Contains(topic) {
			v.Unread.Reset(topic)
		}
	}
}

// Apply updates the view from e and reports whether anything visible
// changed.
func (v *View) Apply(e event.Event) bool {
	if !e.Success {
		return false
	}
	switch e.Kind {
	case event.MessageReceived:
		if !v.Topics.Contains(e.Topic) {
			return false
		}
		v.Unread.Increment(e.Topic)
		return true
	case event.TopicListenStopped, event.TopicDeleted:
		v.Unread.Reset(e.Topic)
	}
	return v.Topics.Apply(e)
}

// MarkRead clears the unread counter of topic.
func (v *View) MarkRead(topic string) {
	v.Unread.Reset(topic)
}

// Row is one rendered entry of the topic list.
type Row struct {
	Topic  string
	Unread int
}

// Rows returns the listened topics in order with their unread counts.
func (v *View) Rows() []Row {
	rows := make([]Row, v.Topics.Len())
	for i := range rows {
		t := v.Topics.At(i)
		rows[i] = Row{Topic: t, Unread: v.Unread.Get(t)}
	}
	return rows
}
