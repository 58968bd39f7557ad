package domain

import "time"

// VariableType is the declared type of an editor-defined variable. Values
// are stored as text and interpreted per declared type at read time.
type VariableType string

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
)

// Variable is an editor-declared variable definition, unique per bot.
type Variable struct {
	BotID   string
	Name    string
	Type    VariableType
	Default string
}

// Product is a shop item, read-only to the engine, used to build invoices.
type Product struct {
	ID          string
	BotID       string
	Name        string
	Description string
	Price       float64
	Currency    string
}

// Session is the per-(bot, end-user) pointer into the flow graph. It is
// overwritten on every visited node and never deleted by the engine.
type Session struct {
	BotID         string
	UserID        int64
	NodeID        string
	AwaitingInput bool
	UpdatedAt     time.Time
}
