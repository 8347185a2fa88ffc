package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
)

// decodeLenient decodes a JSON object into v, which must be a pointer to a
// struct. A field whose JSON type does not match is retried with its numbers
// and booleans rendered as strings, and dropped when that fails too. It
// returns how many fields needed either treatment. Only input that is not a
// JSON object is an error.
func decodeLenient(data []byte, v interface{}) (int, error) {
	if err := json.Unmarshal(data, v); err == nil {
		return 0, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return 0, err
	}

	kept := make(map[string]json.RawMessage, len(fields))
	coerced := 0
	for key, raw := range fields {
		if fieldDecodes(v, key, raw) {
			kept[key] = raw
			continue
		}
		coerced++
		if text, ok := stringifyScalars(raw); ok && fieldDecodes(v, key, text) {
			kept[key] = text
		}
	}

	body, err := json.Marshal(kept)
	if err != nil {
		return coerced, err
	}
	elem := reflect.ValueOf(v).Elem()
	elem.Set(reflect.Zero(elem.Type()))
	return coerced, json.Unmarshal(body, v)
}

// fieldDecodes reports whether {key: raw} decodes into a fresh value of v's type
func fieldDecodes(v interface{}, key string, raw json.RawMessage) bool {
	body, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return false
	}
	scratch := reflect.New(reflect.TypeOf(v).Elem()).Interface()
	return json.Unmarshal(body, scratch) == nil
}

// stringifyScalars rewrites every number and boolean in raw, at any depth, as
// a JSON string.
func stringifyScalars(raw json.RawMessage) (json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	out, err := json.Marshal(toStrings(value))
	if err != nil {
		return nil, false
	}
	return out, true
}

func toStrings(value interface{}) interface{} {
	switch v := value.(type) {
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case map[string]interface{}:
		for k, item := range v {
			v[k] = toStrings(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = toStrings(item)
		}
		return v
	}
	return value
}
