package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// CodecName is the gRPC content subtype the daemon API is spoken in.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the API messages as JSON over gRPC framing.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

// Payload is an event body as a protobuf Struct. Objects map field by field;
// any other JSON value is wrapped as {"value": ...}.
type Payload struct {
	*structpb.Struct
}

// NewPayload converts a bus payload into a Struct through its JSON form.
func NewPayload(v any) (*Payload, error) {
	if v == nil {
		return &Payload{Struct: &structpb.Struct{Fields: map[string]*structpb.Value{}}}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		obj = map[string]any{"value": raw}
	}
	s, err := structpb.NewStruct(obj)
	if err != nil {
		return nil, fmt.Errorf("payload struct: %w", err)
	}
	return &Payload{Struct: s}, nil
}

// MarshalJSON implements json.Marshaler.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil || p.Struct == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(p.Struct)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return err
	}
	p.Struct = s
	return nil
}

// Text returns the field as a string, or "".
func (p *Payload) Text(field string) string {
	if p == nil || p.Struct == nil {
		return ""
	}
	return p.Fields[field].GetStringValue()
}

// Strings returns the field as a list of strings.
func (p *Payload) Strings(field string) []string {
	if p == nil || p.Struct == nil {
		return nil
	}
	list := p.Fields[field].GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.Values))
	for _, v := range list.Values {
		out = append(out, v.GetStringValue())
	}
	return out
}

// Number returns the field as a number, or 0.
func (p *Payload) Number(field string) float64 {
	if p == nil || p.Struct == nil {
		return 0
	}
	return p.Fields[field].GetNumberValue()
}
