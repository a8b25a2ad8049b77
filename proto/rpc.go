package proto

import "encoding/json"

// signal-cli JSON-RPC method names.
const (
	MethodSend               = "send"
	MethodSendReaction       = "sendReaction"
	MethodSendReceipt        = "sendReceipt"
	MethodSendTyping         = "sendTyping"
	MethodSubscribeReceive   = "subscribeReceive"
	MethodUnsubscribeReceive = "unsubscribeReceive"

	NotificationReceive = "receive"
)

const (
	ReceiptRead   = "read"
	ReceiptViewed = "viewed"
)

type SendParams struct {
	Recipient   string   `json:"recipient,omitempty"`
	GroupID     string   `json:"groupId,omitempty"`
	Message     string   `json:"message"`
	Attachments []string `json:"attachments"`
}

type ReactionParams struct {
	Recipient       string `json:"recipient,omitempty"`
	GroupID         string `json:"groupId,omitempty"`
	Emoji           string `json:"emoji"`
	TargetAuthor    string `json:"targetAuthor"`
	TargetTimestamp uint64 `json:"targetTimestamp"`
	Remove          bool   `json:"remove,omitempty"`
}

type ReceiptParams struct {
	Recipient       string `json:"recipient"`
	TargetTimestamp uint64 `json:"targetTimestamp"`
	Type            string `json:"type,omitempty"`
}

type TypingParams struct {
	Recipient string `json:"recipient,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	Stop      bool   `json:"stop"`
}

type UnsubscribeParams struct {
	Subscription json.RawMessage `json:"subscription"`
}

// ReceiveParams is the params object of a "receive" notification.
type ReceiveParams struct {
	Subscription json.RawMessage `json:"subscription,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// SendResult is the part of a send result the gateway reports back.
type SendResult struct {
	Timestamp uint64 `json:"timestamp"`
}
