package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	telebot "gopkg.in/telebot.v3"

	"github.com/botforge/flowengine/internal/domain"
	"github.com/botforge/flowengine/pkg/metrics"
)

// Dispatcher sends a node's ordered content blocks and invoices through the
// Bot API. It never retries: a failed send aborts the remaining blocks and
// the error, carrying the transport's description, is returned to the
// caller to decide how far to unwind.
type Dispatcher struct {
	source        SenderSource
	providerToken string
	log           *slog.Logger
}

// NewDispatcher creates a Dispatcher resolving bots through source.
// providerToken is the payment provider token used for invoices.
func NewDispatcher(source SenderSource, providerToken string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		source:        source,
		providerToken: providerToken,
		log:           log,
	}
}

// SendContentBlocks sends each block as an independent outbound call, in
// stored order. The inline keyboard, if any, is attached only to the last
// block. Each send completes before the next is issued.
func (d *Dispatcher) SendContentBlocks(ctx context.Context, token string, userID int64, blocks []domain.ContentBlock, keyboard []domain.Button) error {
	if len(blocks) == 0 {
		return nil
	}

	sender, err := d.source.Bot(token)
	if err != nil {
		return err
	}

	markup, err := BuildInlineKeyboard(keyboard)
	if err != nil {
		return fmt.Errorf("build keyboard: %w", err)
	}

	recipient := telebot.ChatID(userID)

	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}

		opts := &telebot.SendOptions{
			DisableWebPagePreview: block.DisablePreview,
			HasSpoiler:            block.Spoiler,
		}
		if i == len(blocks)-1 {
			opts.ReplyMarkup = markup
		}

		if err := d.sendBlock(sender, recipient, block, opts); err != nil {
			metrics.RecordSend(string(block.Type), "error")
			return fmt.Errorf("send %s block %s: %w", block.Type, block.ID, err)
		}
		metrics.RecordSend(string(block.Type), "ok")
	}

	return nil
}

func (d *Dispatcher) sendBlock(sender Sender, to telebot.Recipient, block domain.ContentBlock, opts *telebot.SendOptions) error {
	switch block.Type {
	case domain.BlockText:
		_, err := sender.Send(to, block.Content, opts)
		return err
	case domain.BlockImage:
		photo := &telebot.Photo{File: telebot.FromURL(block.URL)}
		_, err := sender.Send(to, photo, opts)
		return err
	case domain.BlockVideo:
		video := &telebot.Video{File: telebot.FromURL(block.URL)}
		_, err := sender.Send(to, video, opts)
		return err
	default:
		d.log.Warn("skipping content block of unknown type",
			slog.String("block_id", block.ID),
			slog.String("type", string(block.Type)),
		)
		return nil
	}
}

// SendInvoice issues a single-item invoice for product. The payload is
// deterministically derived from payer and product so that a later
// payment-confirmation webhook can be correlated.
func (d *Dispatcher) SendInvoice(ctx context.Context, token string, userID int64, product *domain.Product) error {
	if product == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sender, err := d.source.Bot(token)
	if err != nil {
		return err
	}

	description := product.Description
	if description == "" {
		description = "Digital Product"
	}

	currency := product.Currency
	if currency == "" {
		currency = "USD"
	}

	invoice := &telebot.Invoice{
		Title:       product.Name,
		Description: description,
		Payload:     InvoicePayload(userID, product.ID),
		Currency:    currency,
		Token:       d.providerToken,
		Prices: []telebot.Price{
			{Label: "Price", Amount: minorUnits(product.Price)},
		},
		Start: "shop",
	}

	if _, err := sender.Send(telebot.ChatID(userID), invoice); err != nil {
		metrics.RecordInvoice("error")
		return fmt.Errorf("send invoice for product %s: %w", product.ID, err)
	}

	metrics.RecordInvoice("ok")
	return nil
}

// InvoicePayload derives the correlation payload for a payer and product.
func InvoicePayload(userID int64, productID string) string {
	return fmt.Sprintf("order_%d_%s", userID, productID)
}

// minorUnits converts a decimal price to the platform's integer minor-unit
// representation (cents).
func minorUnits(price float64) int {
	return int(math.Round(price * 100))
}
