package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Typed is anything with a stable wire type name.
type Typed interface {
	EventType() string
}

// Codec maps type names to Go types and back, using JSON payloads.
type Codec struct {
	types map[string]reflect.Type
}

// NewCodec registers the concrete type of every prototype. Prototypes must be
// non-pointer values.
func NewCodec(prototypes ...Typed) *Codec {
	c := &Codec{types: make(map[string]reflect.Type, len(prototypes))}
	for _, p := range prototypes {
		c.types[p.EventType()] = reflect.TypeOf(p)
	}
	return c
}

func (c *Codec) Encode(e Typed, md Metadata) (EventData, error) {
	if _, ok := c.types[e.EventType()]; !ok {
		return EventData{}, fmt.Errorf("encode %s: %w", e.EventType(), ErrUnknownEventType)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return EventData{}, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return EventData{ID: uuid.New(), Type: e.EventType(), Data: data, Metadata: md}, nil
}

// Decode returns the registered value type for typ, not a pointer.
func (c *Codec) Decode(typ string, data []byte) (any, error) {
	t, ok := c.types[typ]
	if !ok {
		return nil, fmt.Errorf("decode %s: %w", typ, ErrUnknownEventType)
	}
	v := reflect.New(t)
	if err := json.Unmarshal(data, v.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return v.Elem().Interface(), nil
}

func (c *Codec) Knows(typ string) bool {
	_, ok := c.types[typ]
	return ok
}
