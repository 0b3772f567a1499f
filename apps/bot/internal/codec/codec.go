// Package codec encodes adventure run events as protobuf Struct envelopes.
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event kinds.
const (
	KindStart     = "start"
	KindEncounter = "encounter"
	KindSuccess   = "success"
	KindFailure   = "failure"
)

// Envelope is a decoded run event.
type Envelope struct {
	Seq  uint64
	Kind string
	TsMs int64
	Data *structpb.Struct
}

// Encode builds the envelope {"seq","kind","ts_ms","data"} and marshals it.
// data values must be JSON-like: strings, numbers, bools, []any and
// map[string]any.
func Encode(seq uint64, kind string, tsMs int64, data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := structpb.NewStruct(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s event data: %w", kind, err)
	}
	env := &structpb.Struct{Fields: map[string]*structpb.Value{
		"seq":   structpb.NewNumberValue(float64(seq)),
		"kind":  structpb.NewStringValue(kind),
		"ts_ms": structpb.NewNumberValue(float64(tsMs)),
		"data":  structpb.NewStructValue(payload),
	}}
	return proto.Marshal(env)
}

// Decode unmarshals an envelope written by Encode.
func Decode(raw []byte) (Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(raw, &s); err != nil {
		return Envelope{}, fmt.Errorf("decode event: %w", err)
	}
	f := s.GetFields()
	env := Envelope{
		Seq:  uint64(f["seq"].GetNumberValue()),
		Kind: f["kind"].GetStringValue(),
		TsMs: int64(f["ts_ms"].GetNumberValue()),
		Data: f["data"].GetStructValue(),
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("decode event: missing kind")
	}
	return env, nil
}

// JSON renders an encoded envelope for the audit API.
func JSON(raw []byte) (json.RawMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	out, err := protojson.Marshal(&s)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// Strings converts a string slice into a Struct-compatible list.
func Strings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
