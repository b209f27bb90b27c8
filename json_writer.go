package stocker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// jsonObjectWriter builds a JSON object whose keys keep their insertion order.
// Its zero value is ready to use. The first marshaling error sticks and is
// returned by MarshalJSON.
type jsonObjectWriter struct {
	buf bytes.Buffer
	err error
}

// Append writes key and the JSON encoding of value.
func (w *jsonObjectWriter) Append(key string, value any) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	data, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("field %q: %w", key, err)
		return w
	}
	if w.buf.Len() > 0 {
		w.buf.WriteByte(',')
	}
	w.buf.WriteString(strconv.Quote(key))
	w.buf.WriteByte(':')
	w.buf.Write(data)
	return w
}

// Optional is Append for values that are neither zero nor empty: false, 0, "",
// nil and empty maps or slices are left out.
func (w *jsonObjectWriter) Optional(key string, value any) *jsonObjectWriter {
	v := reflect.ValueOf(value)
	switch {
	case !v.IsValid() || v.IsZero():
		return w
	case (v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.Len() == 0:
		return w
	}
	return w.Append(key, value)
}

func (w *jsonObjectWriter) MarshalJSON() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, 0, w.buf.Len()+2)
	out = append(out, '{')
	out = append(out, w.buf.Bytes()...)
	return append(out, '}'), nil
}
