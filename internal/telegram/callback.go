package telegram

import (
	"fmt"
	"strings"
)

// Callback data is the wire contract between outbound keyboards and later
// inbound callback updates: a fixed prefix plus an embedded identifier lets
// the engine decode navigation and payment intents without a state lookup.
const (
	// NodeCallbackPrefix marks callbacks that navigate to a node.
	NodeCallbackPrefix = "node_"
	// PayCallbackPrefix marks callbacks that request an invoice for a product.
	PayCallbackPrefix = "pay_"

	// CallbackDataLimitBytes is the Bot API limit for callback_data.
	CallbackDataLimitBytes = 64
)

// CallbackKind classifies decoded callback data.
type CallbackKind int

const (
	CallbackUnknown CallbackKind = iota
	CallbackNode
	CallbackPay
)

// EncodeNodeCallback builds callback data that embeds a target node id.
func EncodeNodeCallback(nodeID string) (string, error) {
	return encode(NodeCallbackPrefix, nodeID)
}

// EncodePayCallback builds callback data that embeds a product id.
func EncodePayCallback(productID string) (string, error) {
	return encode(PayCallbackPrefix, productID)
}

func encode(prefix, id string) (string, error) {
	payload := prefix + id
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}
	return payload, nil
}

// DecodeCallback splits callback data into its kind and embedded identifier.
// Data without a known prefix decodes as CallbackUnknown.
func DecodeCallback(data string) (CallbackKind, string) {
	switch {
	case strings.HasPrefix(data, NodeCallbackPrefix):
		return CallbackNode, strings.TrimPrefix(data, NodeCallbackPrefix)
	case strings.HasPrefix(data, PayCallbackPrefix):
		return CallbackPay, strings.TrimPrefix(data, PayCallbackPrefix)
	default:
		return CallbackUnknown, ""
	}
}
