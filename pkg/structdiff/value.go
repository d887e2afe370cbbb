package structdiff

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// ValueKind identifies the variant a [Value] holds. A single dispatch,
// [KindOf], computes it; the traversal uses it for mismatch detection.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is one node of a dynamically shaped tree. The union is closed:
// [Null], [Bool], [Number], [String], [*Sequence] and [*Mapping] are the
// only variants. Composites are pointer types so two nodes are "the same
// instance" exactly when their pointers are equal.
type Value interface {
	isValue()
}

type Null struct{}

type Bool bool

type Number float64

type String string

// Sequence is an ordered, index-addressed list of values.
type Sequence struct {
	Items []Value
}

// Mapping is a keyed collection that preserves insertion order. Keys are
// unique; re-setting an existing key overwrites the value in place.
type Mapping struct {
	keys   []string
	index  map[string]int
	values []Value
}

func (Null) isValue()      {}
func (Bool) isValue()      {}
func (Number) isValue()    {}
func (String) isValue()    {}
func (*Sequence) isValue() {}
func (*Mapping) isValue()  {}

// KindOf reports the variant of v. A nil Value counts as null: an absent
// element (for example, past the end of the shorter sequence) behaves like
// an explicit null from the traversal's point of view.
func KindOf(v Value) ValueKind {
	switch v.(type) {
	case nil, Null:
		return KindNull
	case Bool:
		return KindBool
	case Number:
		return KindNumber
	case String:
		return KindString
	case *Sequence:
		return KindSequence
	case *Mapping:
		return KindMapping
	default:
		return KindNull
	}
}

// IsComposite reports whether v is a sequence or mapping.
func IsComposite(v Value) bool {
	k := KindOf(v)
	return k == KindSequence || k == KindMapping
}

func isNull(v Value) bool {
	return KindOf(v) == KindNull
}

// NewSequence builds a sequence from items.
func NewSequence(items ...Value) *Sequence {
	return &Sequence{Items: items}
}

func (s *Sequence) Len() int {
	return len(s.Items)
}

// At returns the item at i, or nil when i is out of range.
func (s *Sequence) At(i int) Value {
	if i < 0 || i >= len(s.Items) {
		return nil
	}
	return s.Items[i]
}

// NewMapping returns an empty ordered mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

// Set inserts key at the end, or overwrites in place when key already
// exists. It returns m so construction can be chained.
func (m *Mapping) Set(key string, v Value) *Mapping {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.values[i] = v
		return m
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, v)
	return m
}

func (m *Mapping) Get(key string) (Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.values[i], true
}

func (m *Mapping) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Keys returns the keys in insertion order. The slice is shared with the
// mapping; callers must not mutate it.
func (m *Mapping) Keys() []string {
	return m.keys
}

func (m *Mapping) Len() int {
	return len(m.keys)
}

func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (s *Sequence) MarshalJSON() ([]byte, error) {
	return Encode(s)
}

func (m *Mapping) MarshalJSON() ([]byte, error) {
	return Encode(m)
}

// Encode renders v to its canonical textual form (JSON). Mapping keys keep
// their insertion order, so Encode(Parse(b)) reproduces b modulo number
// formatting and whitespace. A cyclic value cannot be rendered and fails
// with an error rather than recursing forever.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, make(visitSet)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeValue writes the canonical form of v. The ancestors set tracks the
// composites on the current path only, so a value shared between sibling
// branches still renders while a true cycle is refused.
func encodeValue(buf *bytes.Buffer, v Value, ancestors visitSet) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
		return nil
	case Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Number:
		data, err := json.Marshal(float64(t))
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	case String:
		data, err := json.Marshal(string(t))
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	case *Sequence:
		if ancestors.seen(t) {
			return fmt.Errorf("structdiff: cannot render cyclic value")
		}
		ancestors.add(t)
		buf.WriteByte('[')
		for i, item := range t.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item, ancestors); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		ancestors.drop(t)
		return nil
	case *Mapping:
		if ancestors.seen(t) {
			return fmt.Errorf("structdiff: cannot render cyclic value")
		}
		ancestors.add(t)
		buf.WriteByte('{')
		for i, key := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(data)
			buf.WriteByte(':')
			if err := encodeValue(buf, t.values[i], ancestors); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		ancestors.drop(t)
		return nil
	default:
		return fmt.Errorf("structdiff: cannot render %T", v)
	}
}

// Parse decodes JSON into a Value, preserving object key order. It is the
// inverse of [Encode].
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("structdiff: trailing data after top-level value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseMapping(dec)
		case '[':
			return parseSequence(dec)
		default:
			return nil, fmt.Errorf("structdiff: unexpected delimiter %q", t.String())
		}
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case nil:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("structdiff: unexpected token %v", tok)
	}
}

func parseMapping(dec *json.Decoder) (*Mapping, error) {
	m := NewMapping()
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return m, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("structdiff: object key is %T, want string", tok)
		}
		v, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
	}
}

func parseSequence(dec *json.Decoder) (*Sequence, error) {
	s := &Sequence{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return s, nil
		}
		v, err := valueFromToken(dec, tok)
		if err != nil {
			return nil, err
		}
		s.Items = append(s.Items, v)
	}
}
