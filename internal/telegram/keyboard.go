package telegram

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/botforge/flowengine/internal/domain"
)

// buttonsPerRow is the fixed keyboard layout: buttons are packed two per
// row, row-major, in their stored order.
const buttonsPerRow = 2

// BuildInlineKeyboard renders a node's keyboard as telebot inline markup.
// Returns nil markup for an empty keyboard so callers can pass it straight
// into send options.
func BuildInlineKeyboard(buttons []domain.Button) (*telebot.ReplyMarkup, error) {
	if len(buttons) == 0 {
		return nil, nil
	}

	rows := make([][]telebot.InlineButton, 0, (len(buttons)+buttonsPerRow-1)/buttonsPerRow)

	var row []telebot.InlineButton
	for _, btn := range buttons {
		rendered, ok, err := renderButton(btn)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		row = append(row, rendered)
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return &telebot.ReplyMarkup{InlineKeyboard: rows}, nil
}

func renderButton(btn domain.Button) (telebot.InlineButton, bool, error) {
	switch btn.Type {
	case domain.ButtonURL:
		return telebot.InlineButton{Text: btn.Label, URL: btn.Value}, true, nil
	case domain.ButtonNode:
		data, err := EncodeNodeCallback(btn.Value)
		if err != nil {
			return telebot.InlineButton{}, false, err
		}
		return telebot.InlineButton{Text: btn.Label, Data: data}, true, nil
	case domain.ButtonPay:
		data, err := EncodePayCallback(btn.Value)
		if err != nil {
			return telebot.InlineButton{}, false, err
		}
		return telebot.InlineButton{Text: btn.Label, Data: data}, true, nil
	default:
		// Unknown button kinds are normalized away at the store boundary;
		// skip rather than send a dead button if one slips through.
		return telebot.InlineButton{}, false, nil
	}
}
