package proto

// SendRequest is the body of POST /send.
type SendRequest struct {
	Recipient   Recipient `json:"recipient"`
	Message     string    `json:"message"`
	Attachments []string  `json:"attachments,omitempty"` // base64 image data
}

// SendCompatRequest mirrors the v2 send body of bbernhard/signal-cli-rest-api.
type SendCompatRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	Number     string   `json:"number,omitempty"` // sending account; the daemon decides
}

type SendResponse struct {
	Timestamp uint64 `json:"timestamp"`
}

// ReactRequest is the body of POST /react.
type ReactRequest struct {
	Recipient Recipient `json:"recipient"`
	Emoji     string    `json:"emoji"`
	Author    string    `json:"author"`    // author of the message reacted to
	Timestamp uint64    `json:"timestamp"` // timestamp of the message reacted to
	Remove    bool      `json:"remove,omitempty"`
}

// ReceiptRequest is the body of POST /receive.
type ReceiptRequest struct {
	Recipient string `json:"recipient"`
	Timestamp uint64 `json:"timestamp"`
	Type      string `json:"type,omitempty"` // "read" (default) or "viewed"
}

// TypingRequest is the body of POST /typing.
type TypingRequest struct {
	Recipient Recipient `json:"recipient"`
	Stop      bool      `json:"stop"`
}
