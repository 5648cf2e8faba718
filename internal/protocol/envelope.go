// Package protocol defines the JSON frames exchanged with the simulator and
// the web UI surfaces.
//
// Every frame is an Envelope {"id": N, "content": {...}}. The content variant
// is not carried by a discriminator field: each variant owns one reserved key
// of the form "__NAME__" inside the object (usually set to true, for
// HelloWorld set to the peer type). Decoding looks for the single reserved
// key present and records it as the message Kind.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Reserved envelope ids.
const (
	// SimulatorID is the handler id of the simulator session.
	SimulatorID uint64 = 0
	// BroadcastID addresses every registered handler but the sender. The
	// server also uses it as the origin of its own messages.
	BroadcastID uint64 = 1
	// FirstWebID is the first id handed out to web sessions.
	FirstWebID uint64 = 2
)

var (
	// ErrMalformed reports a frame that is not a valid envelope.
	ErrMalformed = errors.New("protocol: malformed frame")
	// ErrUnknownMessage reports content without a known reserved key.
	ErrUnknownMessage = errors.New("protocol: unknown message")
)

// Envelope is the top-level frame.
type Envelope struct {
	ID      uint64  `json:"id"`
	Content Message `json:"content"`
}

// Message is one content variant. Raw holds the complete JSON object,
// reserved key included, so messages the server does not interpret are
// forwarded byte for byte.
type Message struct {
	Kind Kind
	Raw  json.RawMessage
}

// Content is implemented by every typed variant.
type Content interface {
	Kind() Kind
}

// New encodes c into a Message, adding its reserved key when c does not
// carry it as a field.
func New(c Content) (Message, error) {
	kind := c.Kind()
	data, err := json.Marshal(c)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", kind, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	if _, ok := fields[string(kind)]; !ok {
		fields[string(kind)] = json.RawMessage("true")
		if data, err = json.Marshal(fields); err != nil {
			return Message{}, fmt.Errorf("encode %s: %w", kind, err)
		}
	}
	return Message{Kind: kind, Raw: data}, nil
}

// MustNew is New for variants whose encoding cannot fail.
func MustNew(c Content) Message {
	m, err := New(c)
	if err != nil {
		panic(err)
	}
	return m
}

// Decode unmarshals the message into v, which must be a pointer to the
// variant matching m.Kind.
func (m Message) Decode(v Content) error {
	if v.Kind() != m.Kind {
		return fmt.Errorf("decode %s into %s: %w", m.Kind, v.Kind(), ErrMalformed)
	}
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Kind, err)
	}
	return nil
}

// Is reports whether the message is of kind k.
func (m Message) Is(k Kind) bool {
	return m.Kind == k
}

// MarshalJSON writes the raw object.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Raw) == 0 {
		return nil, fmt.Errorf("encode empty message: %w", ErrMalformed)
	}
	return m.Raw, nil
}

// UnmarshalJSON identifies the variant from its reserved key.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: content: %v", ErrMalformed, err)
	}
	if fields == nil {
		return fmt.Errorf("%w: content is null", ErrMalformed)
	}

	var found Kind
	for key := range fields {
		if !isReservedKey(key) {
			continue
		}
		if !Kind(key).Known() {
			return fmt.Errorf("%w: %s", ErrUnknownMessage, key)
		}
		if found != "" {
			return fmt.Errorf("%w: both %s and %s present", ErrMalformed, found, key)
		}
		found = Kind(key)
	}
	if found == "" {
		return fmt.Errorf("%w: no reserved key", ErrUnknownMessage)
	}

	m.Kind = found
	m.Raw = append(m.Raw[:0], bytes.TrimSpace(data)...)
	return nil
}

// Parse decodes one frame.
func Parse(data []byte) (*Envelope, error) {
	var raw struct {
		ID      *uint64         `json:"id"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.ID == nil {
		return nil, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: missing content", ErrMalformed)
	}

	env := &Envelope{ID: *raw.ID}
	if err := env.Content.UnmarshalJSON(raw.Content); err != nil {
		return nil, err
	}
	return env, nil
}

// Encode builds the frame for msg addressed with id.
func Encode(id uint64, msg Message) ([]byte, error) {
	return json.Marshal(Envelope{ID: id, Content: msg})
}

// EncodeContent is Encode for a typed variant.
func EncodeContent(id uint64, c Content) ([]byte, error) {
	msg, err := New(c)
	if err != nil {
		return nil, err
	}
	return Encode(id, msg)
}

func isReservedKey(key string) bool {
	return len(key) > 4 && strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__")
}
