package codec

// OutboundMessage is a user-authored message: a message type plus an
// ordered sequence of body fields. It is single-owner — the caller
// constructs it and passes it by move to the session's send operation,
// which adds standard headers at send time.
//
// The builder keeps each tag's values as an ordered list, positioned where
// the tag was first set; on Fields(), the list is flattened back into
// repeated tag/value entries, preserving order. This
// reproduces FIX repeating-group semantics without schema awareness.
type OutboundMessage struct {
	msgType  string
	tagOrder []int
	values   map[int][]string
}

// NewOutboundMessage starts a builder for a message of the given MsgType
// (tag 35 value).
func NewOutboundMessage(msgType string) *OutboundMessage {
	return &OutboundMessage{
		msgType: msgType,
		values:  make(map[int][]string),
	}
}

// MsgType returns the message type this builder was created with.
func (m *OutboundMessage) MsgType() string {
	return m.msgType
}

// SetField appends value to tag's value list, preserving insertion order.
// The first call for a tag records its position in the overall field
// order; later calls only extend that tag's value list.
func (m *OutboundMessage) SetField(tag int, value string) *OutboundMessage {
	if _, ok := m.values[tag]; !ok {
		m.tagOrder = append(m.tagOrder, tag)
	}
	m.values[tag] = append(m.values[tag], value)
	return m
}

// SetFields is a bulk setter: each field is applied via SetField in the
// order given.
func (m *OutboundMessage) SetFields(fields ...Field) *OutboundMessage {
	for _, f := range fields {
		m.SetField(f.Tag, f.Value)
	}
	return m
}

// GetField returns the first value set for tag, if any.
func (m *OutboundMessage) GetField(tag int) (string, bool) {
	vs, ok := m.values[tag]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetFieldValues returns every value set for tag, in the order they were
// set (the repeated-tag law: set_field(T,v1); set_field(T,v2) yields
// [v1, v2] on read).
func (m *OutboundMessage) GetFieldValues(tag int) []string {
	vs := m.values[tag]
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// HasField reports whether tag has been set at least once.
func (m *OutboundMessage) HasField(tag int) bool {
	_, ok := m.values[tag]
	return ok
}

// RemoveField clears every value recorded for tag.
func (m *OutboundMessage) RemoveField(tag int) *OutboundMessage {
	if _, ok := m.values[tag]; ok {
		delete(m.values, tag)
		for i, t := range m.tagOrder {
			if t == tag {
				m.tagOrder = append(m.tagOrder[:i], m.tagOrder[i+1:]...)
				break
			}
		}
	}
	return m
}

// Fields flattens the builder into an ordered field list: tags in the order
// they were first set, each tag's repeated values expanded back into
// repeated (tag, value) entries in their original order.
func (m *OutboundMessage) Fields() []Field {
	var out []Field
	for _, tag := range m.tagOrder {
		for _, v := range m.values[tag] {
			out = append(out, Field{Tag: tag, Value: v})
		}
	}
	return out
}
