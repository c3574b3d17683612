package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/webframe/core"
	"github.com/searchktools/webframe/core/http"
)

// Content types of the stats resource
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Stats answers with engine statistics as a google.protobuf.Struct: binary
// protobuf when the client accepts application/x-protobuf, protojson
// otherwise.
func Stats(source func() core.Stats) http.Handler {
	return func(w io.Writer, req *http.Request) {
		msg, err := StatsStruct(source())
		if err != nil {
			req.Log.Warn().Err(err).Msg("stats encoding failed")
			http.Error(w, 500)
			return
		}

		if strings.Contains(req.Header("Accept"), ContentTypeProtobuf) {
			data, err := proto.Marshal(msg)
			if err != nil {
				http.Error(w, 500)
				return
			}
			http.WriteResponse(w, 200, ContentTypeProtobuf, data)
			return
		}

		data, err := protojson.MarshalOptions{Multiline: true}.Marshal(msg)
		if err != nil {
			http.Error(w, 500)
			return
		}
		http.WriteResponse(w, 200, ContentTypeJSON, data)
	}
}

// StatsStruct converts s into a protobuf Struct
func StatsStruct(s core.Stats) (*structpb.Struct, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}

	return structpb.NewStruct(fields)
}
