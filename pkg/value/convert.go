// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// FromAny converts native Go data (as produced by encoding/json, yaml.v3 or
// hand-built maps) into a Value.
func FromAny(data any) (Value, error) {
	switch val := data.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case *Value:
		if val == nil {
			return Null(), nil
		}
		return *val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(float64(val)), nil
	case int:
		return Number(float64(val)), nil
	case int8:
		return Number(float64(val)), nil
	case int16:
		return Number(float64(val)), nil
	case int32:
		return Number(float64(val)), nil
	case int64:
		return Number(float64(val)), nil
	case uint:
		return Number(float64(val)), nil
	case uint8:
		return Number(float64(val)), nil
	case uint16:
		return Number(float64(val)), nil
	case uint32:
		return Number(float64(val)), nil
	case uint64:
		return Number(float64(val)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Null(), fmt.Errorf("value: invalid number %q: %w", val, err)
		}
		return Number(f), nil
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return Value{kind: KindArray, arr: items}, nil
	case []string:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = String(item)
		}
		return Value{kind: KindArray, arr: items}, nil
	case map[string]any:
		fields := make(map[string]Value, len(val))
		for k, item := range val {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			fields[k] = v
		}
		return Value{kind: KindObject, obj: fields}, nil
	case map[string]string:
		fields := make(map[string]Value, len(val))
		for k, item := range val {
			fields[k] = String(item)
		}
		return Value{kind: KindObject, obj: fields}, nil
	case map[any]any:
		fields := make(map[string]Value, len(val))
		for k, item := range val {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			fields[fmt.Sprint(k)] = v
		}
		return Value{kind: KindObject, obj: fields}, nil
	}
	return fromReflect(data)
}

// MustFromAny is FromAny for literals known to be convertible.
func MustFromAny(data any) Value {
	v, err := FromAny(data)
	if err != nil {
		panic(err)
	}
	return v
}

// fromReflect handles typed structs and slices by round-tripping through JSON.
func fromReflect(data any) (Value, error) {
	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map, reflect.Pointer:
		raw, err := json.Marshal(data)
		if err != nil {
			return Null(), fmt.Errorf("value: unsupported type %T: %w", data, err)
		}
		return Parse(raw)
	default:
		return Null(), fmt.Errorf("value: unsupported type %T", data)
	}
}

// Any converts v into native Go data: nil, bool, float64, string, []any and
// map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// Parse decodes JSON text into a Value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), fmt.Errorf("value: parse json: %w", err)
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ToProto converts v into a protobuf struct value.
func (v Value) ToProto() *structpb.Value {
	switch v.kind {
	case KindBool:
		return structpb.NewBoolValue(v.b)
	case KindNumber:
		return structpb.NewNumberValue(v.n)
	case KindString:
		return structpb.NewStringValue(v.s)
	case KindArray:
		items := make([]*structpb.Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.ToProto()
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items})
	case KindObject:
		fields := make(map[string]*structpb.Value, len(v.obj))
		for k, item := range v.obj {
			fields[k] = item.ToProto()
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	default:
		return structpb.NewNullValue()
	}
}

// FromProto converts a protobuf struct value into a Value.
func FromProto(pv *structpb.Value) Value {
	if pv == nil {
		return Null()
	}
	switch kind := pv.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return Bool(kind.BoolValue)
	case *structpb.Value_NumberValue:
		return Number(kind.NumberValue)
	case *structpb.Value_StringValue:
		return String(kind.StringValue)
	case *structpb.Value_ListValue:
		values := kind.ListValue.GetValues()
		items := make([]Value, len(values))
		for i, item := range values {
			items[i] = FromProto(item)
		}
		return Value{kind: KindArray, arr: items}
	case *structpb.Value_StructValue:
		src := kind.StructValue.GetFields()
		fields := make(map[string]Value, len(src))
		for k, item := range src {
			fields[k] = FromProto(item)
		}
		return Value{kind: KindObject, obj: fields}
	default:
		return Null()
	}
}
