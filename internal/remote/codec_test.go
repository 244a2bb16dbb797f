// Copyright 2025 Joseph Cumines
//
// Wire compatibility tests
//
// Agent and server may run different versions, so the Struct encoding must
// tolerate missing and unknown fields in both directions.

package remote

import (
	"testing"

	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestFromStruct_EmptyDecodesToZeroValues(t *testing.T) {
	var req desktop.ClickRequest
	require.NoError(t, fromStruct(&structpb.Struct{}, &req))
	assert.Equal(t, desktop.ClickRequest{}, req)

	var info desktop.SystemInfo
	require.NoError(t, fromStruct(nil, &info))
	assert.Equal(t, desktop.SystemInfo{}, info)
}

func TestFromStruct_IgnoresUnknownFields(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{
		"loc":          map[string]any{"x": 10, "y": 20, "z": 30},
		"button":       "right",
		"clicks":       2,
		"modifierKeys": []any{"ctrl"},
	})
	require.NoError(t, err)

	var req desktop.ClickRequest
	require.NoError(t, fromStruct(s, &req))
	assert.Equal(t, desktop.ClickRequest{Loc: desktop.Point{X: 10, Y: 20}, Button: desktop.ButtonRight, Clicks: 2}, req)
}

func TestStruct_RoundTrip(t *testing.T) {
	state := &desktop.State{
		Tree: &tree.State{
			ActiveApp:   &tree.App{Name: "Notepad", Handle: 1 << 40},
			Apps:        []tree.App{{Name: "Notepad"}},
			Interactive: []tree.ElementNode{{Name: "OK", Center: tree.Center{X: 1, Y: 2}}},
			DOM:         &tree.DOMInfo{VerticalScrollPercent: 42.5},
		},
		Screenshot: []byte{0x89, 'P', 'N', 'G', 0, 0xff},
	}
	s, err := toStruct(state)
	require.NoError(t, err)

	// survives the protobuf wire encoding
	data, err := proto.Marshal(s)
	require.NoError(t, err)
	decoded := new(structpb.Struct)
	require.NoError(t, proto.Unmarshal(data, decoded))

	var got desktop.State
	require.NoError(t, fromStruct(decoded, &got))
	assert.Equal(t, state.Screenshot, got.Screenshot)
	require.NotNil(t, got.Tree)
	assert.Equal(t, state.Tree.ActiveApp, got.Tree.ActiveApp)
	assert.Equal(t, state.Tree.Interactive, got.Tree.Interactive)
	assert.Equal(t, state.Tree.DOM, got.Tree.DOM)
}

func TestToStruct_RejectsNonObjects(t *testing.T) {
	_, err := toStruct([]int{1, 2})
	assert.Error(t, err)
}

func TestFullMethod(t *testing.T) {
	assert.Equal(t, "/windowsmcp.v1.Desktop/Click", fullMethod("Click"))
}
