package services

import (
	"context"
	"encoding/json"

	"github.com/mbocsi/sigbridge/proto"
)

// Signal is the part of the daemon RPC handle the gateway needs.
type Signal interface {
	Send(ctx context.Context, params proto.SendParams) (json.RawMessage, error)
	SendReaction(ctx context.Context, params proto.ReactionParams) error
	SendReceipt(ctx context.Context, params proto.ReceiptParams) error
	SendTyping(ctx context.Context, params proto.TypingParams) error
}

// MessagingService validates gateway actions and issues the matching RPC call.
// Invalid input is rejected before the daemon is contacted.
type MessagingService interface {
	Send(ctx context.Context, req proto.SendRequest) (*proto.SendResponse, error)
	SendCompat(ctx context.Context, req proto.SendCompatRequest) (*proto.SendResponse, error)
	React(ctx context.Context, req proto.ReactRequest) error
	Receipt(ctx context.Context, req proto.ReceiptRequest) error
	Typing(ctx context.Context, req proto.TypingRequest) error
}

// ServiceContainer holds all service implementations
type ServiceContainer struct {
	Messaging MessagingService
}
