package webhook

import (
	"encoding/json"
	"io"

	"github.com/botforge/flowengine/internal/engine"
)

// envelope mirrors the subset of the Telegram update JSON the runtime
// understands. Everything else classifies as unknown and is acknowledged
// without processing.
type envelope struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// decodeUpdate classifies the raw webhook body into an engine update.
// Malformed bodies decode as unknown: Telegram must still get a 200 or it
// will redeliver forever.
func decodeUpdate(r io.Reader) engine.Update {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return engine.Update{Kind: engine.UpdateUnknown}
	}

	switch {
	case env.Message != nil && env.Message.From != nil:
		return engine.Update{
			ID:     env.UpdateID,
			Kind:   engine.UpdateMessage,
			UserID: env.Message.From.ID,
			Text:   env.Message.Text,
		}
	case env.CallbackQuery != nil && env.CallbackQuery.From != nil:
		return engine.Update{
			ID:           env.UpdateID,
			Kind:         engine.UpdateCallback,
			UserID:       env.CallbackQuery.From.ID,
			CallbackData: env.CallbackQuery.Data,
		}
	default:
		return engine.Update{ID: env.UpdateID, Kind: engine.UpdateUnknown}
	}
}
