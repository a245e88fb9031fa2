package mapping

import (
	"encoding/json"

	"connectrpc.com/connect"
)

var _ connect.Codec = JSONCodec{}

// JSONCodec lets connect carry plain Go structs as application/json.
// It replaces connect's protojson codec, which only accepts proto messages.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
