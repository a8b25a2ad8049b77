package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbocsi/sigbridge/proto"
)

// MessagingServiceImpl implements MessagingService
type MessagingServiceImpl struct {
	signal Signal
}

// NewMessagingService creates a new messaging service
func NewMessagingService(signal Signal) MessagingService {
	return &MessagingServiceImpl{signal: signal}
}

func (ms *MessagingServiceImpl) Send(ctx context.Context, req proto.SendRequest) (*proto.SendResponse, error) {
	target, err := req.Recipient.Target()
	if err != nil {
		return nil, invalidInputErr(err)
	}

	raw, err := ms.signal.Send(ctx, proto.SendParams{
		Recipient:   target.Person,
		GroupID:     target.Group,
		Message:     req.Message,
		Attachments: attachmentURIs(req.Attachments),
	})
	if err != nil {
		return nil, upstreamError(proto.MethodSend, err)
	}

	var result proto.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, upstreamError(proto.MethodSend, fmt.Errorf("decode send result: %w", err))
	}
	return &proto.SendResponse{Timestamp: result.Timestamp}, nil
}

// SendCompat accepts the list-of-recipients shape but only ever one recipient,
// since the daemon's send targets a single person or group.
func (ms *MessagingServiceImpl) SendCompat(ctx context.Context, req proto.SendCompatRequest) (*proto.SendResponse, error) {
	switch len(req.Recipients) {
	case 0:
		return nil, invalidInputErr(proto.ErrMissingRecipient)
	case 1:
	default:
		return nil, invalidInput("Multi-recipient messages are not supported")
	}

	return ms.Send(ctx, proto.SendRequest{
		Recipient: proto.Recipient{Kind: proto.RecipientPerson, Value: req.Recipients[0]},
		Message:   req.Message,
	})
}

func (ms *MessagingServiceImpl) React(ctx context.Context, req proto.ReactRequest) error {
	target, err := req.Recipient.Target()
	if err != nil {
		return invalidInputErr(err)
	}
	if req.Emoji == "" {
		return invalidInput("emoji is required")
	}
	if strings.TrimSpace(req.Author) == "" {
		return invalidInput("author is required")
	}
	if err := validateTimestamp(req.Timestamp, "timestamp"); err != nil {
		return err
	}

	err = ms.signal.SendReaction(ctx, proto.ReactionParams{
		Recipient:       target.Person,
		GroupID:         target.Group,
		Emoji:           req.Emoji,
		TargetAuthor:    strings.TrimSpace(req.Author),
		TargetTimestamp: req.Timestamp,
		Remove:          req.Remove,
	})
	if err != nil {
		return upstreamError(proto.MethodSendReaction, err)
	}
	return nil
}

func (ms *MessagingServiceImpl) Receipt(ctx context.Context, req proto.ReceiptRequest) error {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return invalidInputErr(proto.ErrMissingRecipient)
	}
	if err := validateTimestamp(req.Timestamp, "timestamp"); err != nil {
		return err
	}
	kind, err := validateReceiptType(req.Type)
	if err != nil {
		return err
	}

	err = ms.signal.SendReceipt(ctx, proto.ReceiptParams{
		Recipient:       recipient,
		TargetTimestamp: req.Timestamp,
		Type:            kind,
	})
	if err != nil {
		return upstreamError(proto.MethodSendReceipt, err)
	}
	return nil
}

func (ms *MessagingServiceImpl) Typing(ctx context.Context, req proto.TypingRequest) error {
	target, err := req.Recipient.Target()
	if err != nil {
		return invalidInputErr(err)
	}

	err = ms.signal.SendTyping(ctx, proto.TypingParams{
		Recipient: target.Person,
		GroupID:   target.Group,
		Stop:      req.Stop,
	})
	if err != nil {
		return upstreamError(proto.MethodSendTyping, err)
	}
	return nil
}
