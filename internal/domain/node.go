// Package domain holds the flow graph model shared by the engine and the stores.
package domain

// NodeType enumerates the node kinds the editor can produce. The engine
// switches exhaustively on this set; unknown kinds are normalized away at
// the repository boundary.
type NodeType string

const (
	// NodeMessage sends its content blocks and auto-advances.
	NodeMessage NodeType = "message"
	// NodeInput sends its content blocks, then waits for the user's reply
	// and captures it into a variable.
	NodeInput NodeType = "input"
	// NodeChoice sends content blocks with a keyboard and auto-advances.
	NodeChoice NodeType = "choice"
	// NodeCondition evaluates a rule and branches; it never sends anything.
	NodeCondition NodeType = "condition"
)

// BlockType enumerates supported content block kinds.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockVideo BlockType = "video"
)

// ButtonType enumerates inline keyboard button kinds.
type ButtonType string

const (
	// ButtonURL opens an external link.
	ButtonURL ButtonType = "url"
	// ButtonNode navigates to another node via callback data.
	ButtonNode ButtonType = "node"
	// ButtonPay triggers an invoice for a product via callback data.
	ButtonPay ButtonType = "pay"
)

// Operator enumerates condition rule comparison operators.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpGreater   Operator = "greater"
	OpLess      Operator = "less"
	OpContains  Operator = "contains"
)

// ContentBlock is one unit of outbound content inside a node.
type ContentBlock struct {
	ID      string    `json:"id"`
	Type    BlockType `json:"type"`
	Content string    `json:"content,omitempty"`
	URL     string    `json:"url,omitempty"`

	// DisablePreview suppresses link previews on text blocks.
	DisablePreview bool `json:"disable_preview,omitempty"`
	// Spoiler hides media behind a spoiler animation.
	Spoiler bool `json:"spoiler,omitempty"`
}

// Button is one inline keyboard button inside a node.
type Button struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Type  ButtonType `json:"type"`
	// Value is a URL, a target node id, or a product id depending on Type.
	Value string `json:"value"`
}

// ConditionRule compares a variable against a constant.
type ConditionRule struct {
	Variable string   `json:"variable"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Node is one step in a bot's conversation graph. Read-only to the engine.
type Node struct {
	ID       string
	BotID    string
	Name     string
	Type     NodeType
	Blocks   []ContentBlock
	Keyboard []Button

	// Condition is set for condition nodes only.
	Condition *ConditionRule
	// InputVariable names the variable an input node captures into.
	InputVariable string
}

// Edge is a directed transition between two nodes. An empty Handle marks
// the default auto-advance edge; condition nodes use HandleTrue/HandleFalse.
type Edge struct {
	SourceID string
	Handle   string
	TargetID string
}

const (
	// HandleDefault is the handle-less edge followed on auto-advance.
	HandleDefault = ""
	// HandleTrue is followed when a condition evaluates to true.
	HandleTrue = "true"
	// HandleFalse is followed when a condition evaluates to false.
	HandleFalse = "false"
)
