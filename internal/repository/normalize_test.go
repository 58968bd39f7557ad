package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/botforge/flowengine/internal/domain"
)

func TestNormalizeNode_MessageBlocks(t *testing.T) {
	node := &domain.Node{ID: "n1"}
	blocks := []byte(`[
		{"id":"b1","type":"text","content":"Hi {name}","settings":{"disable_preview":true}},
		{"id":"b2","type":"image","url":"https://cdn/img.png","settings":{"spoiler":true}},
		{"id":"b3","type":"sticker","content":"dropped"}
	]`)

	err := normalizeNode(node, "message", blocks, nil, nil)
	require.NoError(t, err)

	require.Equal(t, domain.NodeMessage, node.Type)
	require.Len(t, node.Blocks, 2)
	require.Equal(t, domain.BlockText, node.Blocks[0].Type)
	require.True(t, node.Blocks[0].DisablePreview)
	require.Equal(t, domain.BlockImage, node.Blocks[1].Type)
	require.True(t, node.Blocks[1].Spoiler)
}

func TestNormalizeNode_Keyboard(t *testing.T) {
	node := &domain.Node{ID: "n1"}
	keyboard := []byte(`[
		{"id":"k1","text":"Docs","type":"url","value":"https://example.com"},
		{"id":"k2","text":"Next","type":"node","value":"n2"},
		{"id":"k3","text":"Buy","type":"pay","value":"p1"},
		{"id":"k4","text":"???","type":"share","value":"x"}
	]`)

	err := normalizeNode(node, "choice", nil, keyboard, nil)
	require.NoError(t, err)

	require.Equal(t, domain.NodeChoice, node.Type)
	require.Len(t, node.Keyboard, 3)
	require.Equal(t, domain.ButtonURL, node.Keyboard[0].Type)
	require.Equal(t, "Docs", node.Keyboard[0].Label)
	require.Equal(t, domain.ButtonPay, node.Keyboard[2].Type)
}

func TestNormalizeNode_ConditionSettings(t *testing.T) {
	tests := []struct {
		name         string
		settings     string
		wantOperator domain.Operator
	}{
		{
			name:         "explicit operator",
			settings:     `{"condition":{"variable":"age","operator":"greater","value":"18"}}`,
			wantOperator: domain.OpGreater,
		},
		{
			name:         "missing operator defaults to equals",
			settings:     `{"condition":{"variable":"age","value":"18"}}`,
			wantOperator: domain.OpEquals,
		},
		{
			name:         "unknown operator kept for fail-open evaluation",
			settings:     `{"condition":{"variable":"age","operator":"matches","value":"18"}}`,
			wantOperator: domain.Operator("matches"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &domain.Node{ID: "n1"}
			err := normalizeNode(node, "condition", nil, nil, []byte(tt.settings))
			require.NoError(t, err)

			require.Equal(t, domain.NodeCondition, node.Type)
			require.NotNil(t, node.Condition)
			require.Equal(t, tt.wantOperator, node.Condition.Operator)
		})
	}
}

func TestNormalizeNode_InputSettings(t *testing.T) {
	node := &domain.Node{ID: "n1"}
	err := normalizeNode(node, "input", nil, nil, []byte(`{"variable":"age"}`))
	require.NoError(t, err)

	require.Equal(t, domain.NodeInput, node.Type)
	require.Equal(t, "age", node.InputVariable)
	require.Nil(t, node.Condition)
}

func TestNormalizeNode_TypeAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.NodeType
	}{
		{raw: "message", want: domain.NodeMessage},
		{raw: "regular", want: domain.NodeMessage},
		{raw: "input", want: domain.NodeInput},
		{raw: "choice", want: domain.NodeChoice},
		{raw: "condition", want: domain.NodeCondition},
		{raw: "hologram", want: domain.NodeMessage},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			node := &domain.Node{}
			require.NoError(t, normalizeNode(node, tt.raw, nil, nil, nil))
			require.Equal(t, tt.want, node.Type)
		})
	}
}

func TestNormalizeNode_MalformedJSON(t *testing.T) {
	node := &domain.Node{ID: "n1"}
	err := normalizeNode(node, "message", []byte(`{not json`), nil, nil)
	require.Error(t, err)
}
