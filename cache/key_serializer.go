package cache

import (
	"bytes"
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Canonicalizer turns a key payload into bytes that are identical for
// structurally equal payloads.
type Canonicalizer interface {
	Canonicalize(payload any) ([]byte, error)
}

// textCanonicalizer implements Canonicalizer using reflection. It renders
// maps with sorted keys, structs with their exported fields in declaration
// order, and quotes strings so separators inside values stay unambiguous.
type textCanonicalizer struct{}

// NewTextCanonicalizer creates the default reflection based canonicalizer.
func NewTextCanonicalizer() Canonicalizer {
	return textCanonicalizer{}
}

// Canonicalize serializes payload or fails if it holds functions, channels,
// complex numbers, cycles or other values without a stable representation.
func (s textCanonicalizer) Canonicalize(payload any) ([]byte, error) {
	var b strings.Builder
	w := &textWriter{visiting: make(map[visit]struct{})}
	if err := w.writeValue(&b, payload); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// visit identifies a map, slice or pointer currently being written.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// textWriter holds the state of one Canonicalize call. visiting only
// contains the ancestors of the value being written, so shared but acyclic
// references are fine.
type textWriter struct {
	visiting map[visit]struct{}
}

func (w *textWriter) enter(rv reflect.Value) (func(), error) {
	v := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		v.len = rv.Len()
	}
	if _, ok := w.visiting[v]; ok {
		return nil, fmt.Errorf("%w: cyclic value (%s)", ErrUnserializablePayload, rv.Type())
	}
	w.visiting[v] = struct{}{}
	return func() { delete(w.visiting, v) }, nil
}

func (w *textWriter) writeValue(b *strings.Builder, v any) error {
	if v == nil {
		b.WriteString("nil")
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		b.WriteString("nil")
		return nil
	}

	// Types such as time.Time only expose unexported fields
	if m, ok := v.(encoding.TextMarshaler); ok {
		text, err := m.MarshalText()
		if err != nil {
			return fmt.Errorf("%w: %T: %v", ErrUnserializablePayload, v, err)
		}
		b.WriteString("text:")
		b.WriteString(strconv.Quote(string(text)))
		return nil
	}

	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr,
		reflect.Complex64, reflect.Complex128:
		return fmt.Errorf("%w: unsupported kind %s (%T)", ErrUnserializablePayload, rv.Kind(), v)

	case reflect.Ptr:
		leave, err := w.enter(rv)
		if err != nil {
			return err
		}
		defer leave()
		return w.writeValue(b, rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("slice:nil")
			return nil
		}
		leave, err := w.enter(rv)
		if err != nil {
			return err
		}
		defer leave()
		return w.writeSequence(b, "slice", rv)

	case reflect.Array:
		return w.writeSequence(b, "array", rv)

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("map:nil")
			return nil
		}
		leave, err := w.enter(rv)
		if err != nil {
			return err
		}
		defer leave()
		return w.writeMap(b, rv)

	case reflect.Struct:
		return w.writeStruct(b, rv)

	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))
		return nil

	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil

	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
		return nil
	}

	return fmt.Errorf("%w: unsupported kind %s (%T)", ErrUnserializablePayload, rv.Kind(), v)
}

func (w *textWriter) writeSequence(b *strings.Builder, kind string, rv reflect.Value) error {
	length := rv.Len()
	fmt.Fprintf(b, "%s[%d]:{", kind, length)
	for i := 0; i < length; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := w.writeValue(b, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

// writeMap renders key=value pairs ordered by the serialized key, then by
// the serialized value for keys that render alike (NaN).
func (w *textWriter) writeMap(b *strings.Builder, rv reflect.Value) error {
	type pair struct {
		key   string
		value string
	}

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		if err := w.writeValue(&kb, iter.Key().Interface()); err != nil {
			return err
		}
		if err := w.writeValue(&vb, iter.Value().Interface()); err != nil {
			return err
		}
		pairs = append(pairs, pair{key: kb.String(), value: vb.String()})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	fmt.Fprintf(b, "map[%d]:{", len(pairs))
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	b.WriteByte('}')
	return nil
}

func (w *textWriter) writeStruct(b *strings.Builder, rv reflect.Value) error {
	rt := rv.Type()
	b.WriteString("struct:{")
	written := 0
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}
		if written > 0 {
			b.WriteByte(',')
		}
		b.WriteString(field.Name)
		b.WriteByte(':')
		if err := w.writeValue(b, fieldValue.Interface()); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		written++
	}
	b.WriteByte('}')
	return nil
}

// msgpackCanonicalizer encodes payloads as MessagePack with sorted map keys.
// Struct fields follow msgpack tags, falling back to field names.
type msgpackCanonicalizer struct{}

// NewMsgpackCanonicalizer creates a Canonicalizer backed by msgpack.
func NewMsgpackCanonicalizer() Canonicalizer {
	return msgpackCanonicalizer{}
}

func (msgpackCanonicalizer) Canonicalize(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializablePayload, err)
	}
	return buf.Bytes(), nil
}
