// Copyright 2025 Joseph Cumines

// Package remote exposes a desktop.Desktop over gRPC, so the MCP server can
// drive a Windows host from elsewhere.
//
// Messages are google.protobuf.Struct values carrying the JSON encoding of the
// desktop request and result types. PowerShell commands run as
// google.longrunning operations.
package remote

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "windowsmcp.v1.Desktop"

// maxMessageSize bounds requests and responses, screenshots included.
const maxMessageSize = 64 << 20

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// toStruct converts v, which must encode as a JSON object, to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return s, nil
}

// fromStruct decodes s into v.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = new(structpb.Struct)
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// Wire shapes for requests that carry a single value.
type (
	pointMessage struct {
		To pointJSON `json:"to"`
	}
	pointJSON struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	shortcutMessage struct {
		Shortcut string `json:"shortcut"`
	}
	nameMessage struct {
		Name string `json:"name"`
	}
	commandMessage struct {
		Command string `json:"command"`
	}
	textMessage struct {
		Message string `json:"message"`
	}
)
