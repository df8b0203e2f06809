package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer is one survey question key with its answer. Values may be
// scalars, []any, or nested Answers.
type Answer struct {
	Key   string
	Value any
}

// Answers is an ordered mapping of question key to answer value. It
// marshals to a JSON object whose member order is insertion order.
type Answers []Answer

// Set replaces the value for key in place, or appends it.
func (a *Answers) Set(key string, value any) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Answer{Key: key, Value: value})
}

// Get returns the value for key.
func (a Answers) Get(key string) (any, bool) {
	for _, ans := range a {
		if ans.Key == key {
			return ans.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (a Answers) Keys() []string {
	keys := make([]string, len(a))
	for i, ans := range a {
		keys[i] = ans.Key
	}
	return keys
}

// MarshalJSON writes the answers as an object in insertion order.
func (a Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ans := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ans.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ans.Value)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", ans.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping document order. Nested objects
// become Answers so their order survives a round trip too.
func (a *Answers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("answers must be a JSON object")
	}
	out, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*a = out
	return nil
}

func decodeObject(dec *json.Decoder) (Answers, error) {
	out := Answers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", key, err)
		}
		out.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			list := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return t, nil
	}
}
