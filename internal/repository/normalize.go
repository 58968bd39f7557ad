package repository

import (
	"encoding/json"
	"fmt"

	"github.com/botforge/flowengine/internal/domain"
)

// The editor stores node payloads as free-form JSON. This file is the
// boundary where those payloads are validated into the closed domain
// schema: unknown block and button kinds are dropped, node type aliases
// and missing operators are normalized, so no loosely-typed data reaches
// the evaluator or the dispatcher.

type blockSettingsJSON struct {
	DisablePreview bool `json:"disable_preview"`
	Spoiler        bool `json:"spoiler"`
}

type blockJSON struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	URL      string            `json:"url"`
	Settings blockSettingsJSON `json:"settings"`
}

type buttonJSON struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type ruleJSON struct {
	Variable string `json:"variable"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type settingsJSON struct {
	Condition *ruleJSON `json:"condition"`
	Variable  string    `json:"variable"`
}

func normalizeNode(node *domain.Node, rawType string, blocks, keyboard, settings []byte) error {
	node.Type = normalizeNodeType(rawType)

	if len(blocks) > 0 {
		var decoded []blockJSON
		if err := json.Unmarshal(blocks, &decoded); err != nil {
			return fmt.Errorf("content blocks: %w", err)
		}
		node.Blocks = normalizeBlocks(decoded)
	}

	if len(keyboard) > 0 {
		var decoded []buttonJSON
		if err := json.Unmarshal(keyboard, &decoded); err != nil {
			return fmt.Errorf("keyboard: %w", err)
		}
		node.Keyboard = normalizeButtons(decoded)
	}

	if len(settings) > 0 {
		var decoded settingsJSON
		if err := json.Unmarshal(settings, &decoded); err != nil {
			return fmt.Errorf("settings: %w", err)
		}

		if node.Type == domain.NodeCondition && decoded.Condition != nil {
			node.Condition = normalizeRule(decoded.Condition)
		}
		if node.Type == domain.NodeInput {
			node.InputVariable = decoded.Variable
		}
	}

	return nil
}

func normalizeNodeType(raw string) domain.NodeType {
	switch domain.NodeType(raw) {
	case domain.NodeInput:
		return domain.NodeInput
	case domain.NodeChoice:
		return domain.NodeChoice
	case domain.NodeCondition:
		return domain.NodeCondition
	case domain.NodeMessage:
		return domain.NodeMessage
	default:
		// "regular" is the editor's legacy alias for message nodes; any
		// other unknown kind degrades to a plain message node.
		return domain.NodeMessage
	}
}

func normalizeBlocks(decoded []blockJSON) []domain.ContentBlock {
	blocks := make([]domain.ContentBlock, 0, len(decoded))
	for _, b := range decoded {
		blockType := domain.BlockType(b.Type)
		switch blockType {
		case domain.BlockText, domain.BlockImage, domain.BlockVideo:
		default:
			continue
		}

		blocks = append(blocks, domain.ContentBlock{
			ID:             b.ID,
			Type:           blockType,
			Content:        b.Content,
			URL:            b.URL,
			DisablePreview: b.Settings.DisablePreview,
			Spoiler:        b.Settings.Spoiler,
		})
	}
	return blocks
}

func normalizeButtons(decoded []buttonJSON) []domain.Button {
	buttons := make([]domain.Button, 0, len(decoded))
	for _, b := range decoded {
		buttonType := domain.ButtonType(b.Type)
		switch buttonType {
		case domain.ButtonURL, domain.ButtonNode, domain.ButtonPay:
		default:
			continue
		}

		buttons = append(buttons, domain.Button{
			ID:    b.ID,
			Label: b.Text,
			Type:  buttonType,
			Value: b.Value,
		})
	}
	return buttons
}

func normalizeRule(decoded *ruleJSON) *domain.ConditionRule {
	operator := domain.Operator(decoded.Operator)
	if operator == "" {
		operator = domain.OpEquals
	}

	return &domain.ConditionRule{
		Variable: decoded.Variable,
		Operator: operator,
		Value:    decoded.Value,
	}
}
