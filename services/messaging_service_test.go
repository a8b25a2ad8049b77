package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mbocsi/sigbridge/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSignal records every call it receives.
type fakeSignal struct {
	mu        sync.Mutex
	sends     []proto.SendParams
	reactions []proto.ReactionParams
	receipts  []proto.ReceiptParams
	typing    []proto.TypingParams

	result json.RawMessage
	err    error
}

func (f *fakeSignal) Send(ctx context.Context, params proto.SendParams) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSignal) SendReaction(ctx context.Context, params proto.ReactionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, params)
	return f.err
}

func (f *fakeSignal) SendReceipt(ctx context.Context, params proto.ReceiptParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = append(f.receipts, params)
	return f.err
}

func (f *fakeSignal) SendTyping(ctx context.Context, params proto.TypingParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, params)
	return f.err
}

func (f *fakeSignal) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends) + len(f.reactions) + len(f.receipts) + len(f.typing)
}

// validGroupID is base64 for 32 zero bytes.
const validGroupID = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

func person(v string) proto.Recipient {
	return proto.Recipient{Kind: proto.RecipientPerson, Value: v}
}

func group(v string) proto.Recipient {
	return proto.Recipient{Kind: proto.RecipientGroup, Value: v}
}

func TestMessagingService_Send(t *testing.T) {
	signal := &fakeSignal{result: json.RawMessage(`{"timestamp":1700000000,"results":[]}`)}
	svc := NewMessagingService(signal)

	resp, err := svc.Send(context.Background(), proto.SendRequest{
		Recipient: person("+15551234567"),
		Message:   "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), resp.Timestamp)

	require.Len(t, signal.sends, 1)
	assert.Equal(t, "+15551234567", signal.sends[0].Recipient)
	assert.Empty(t, signal.sends[0].GroupID)
	assert.Equal(t, "hi", signal.sends[0].Message)
	assert.Empty(t, signal.sends[0].Attachments)
}

func TestMessagingService_SendToGroupWithAttachments(t *testing.T) {
	signal := &fakeSignal{result: json.RawMessage(`{"timestamp":5}`)}
	svc := NewMessagingService(signal)

	_, err := svc.Send(context.Background(), proto.SendRequest{
		Recipient:   group(validGroupID),
		Attachments: []string{"Zm9v", "YmFy"},
	})
	require.NoError(t, err)

	require.Len(t, signal.sends, 1)
	assert.Equal(t, validGroupID, signal.sends[0].GroupID)
	assert.Empty(t, signal.sends[0].Recipient)
	assert.Equal(t, []string{
		"data:image/jpeg;base64,Zm9v",
		"data:image/jpeg;base64,YmFy",
	}, signal.sends[0].Attachments)
}

func TestMessagingService_ValidationSkipsDaemon(t *testing.T) {
	tests := []struct {
		name string
		call func(MessagingService) error
	}{
		{"short group id", func(s MessagingService) error {
			_, err := s.Send(context.Background(), proto.SendRequest{Recipient: group("AAAA"), Message: "hi"})
			return err
		}},
		{"group id not base64", func(s MessagingService) error {
			_, err := s.Send(context.Background(), proto.SendRequest{Recipient: group("not base64!"), Message: "hi"})
			return err
		}},
		{"missing recipient", func(s MessagingService) error {
			_, err := s.Send(context.Background(), proto.SendRequest{Message: "hi"})
			return err
		}},
		{"compat without recipients", func(s MessagingService) error {
			_, err := s.SendCompat(context.Background(), proto.SendCompatRequest{Message: "hi"})
			return err
		}},
		{"compat with two recipients", func(s MessagingService) error {
			_, err := s.SendCompat(context.Background(), proto.SendCompatRequest{Recipients: []string{"+1", "+2"}, Message: "hi"})
			return err
		}},
		{"reaction without emoji", func(s MessagingService) error {
			return s.React(context.Background(), proto.ReactRequest{Recipient: person("+1"), Author: "+2", Timestamp: 1})
		}},
		{"reaction without author", func(s MessagingService) error {
			return s.React(context.Background(), proto.ReactRequest{Recipient: person("+1"), Emoji: "👍", Timestamp: 1})
		}},
		{"reaction without timestamp", func(s MessagingService) error {
			return s.React(context.Background(), proto.ReactRequest{Recipient: person("+1"), Emoji: "👍", Author: "+2"})
		}},
		{"receipt without recipient", func(s MessagingService) error {
			return s.Receipt(context.Background(), proto.ReceiptRequest{Timestamp: 1})
		}},
		{"receipt with unknown type", func(s MessagingService) error {
			return s.Receipt(context.Background(), proto.ReceiptRequest{Recipient: "+1", Timestamp: 1, Type: "delivered"})
		}},
		{"typing with bad group", func(s MessagingService) error {
			return s.Typing(context.Background(), proto.TypingRequest{Recipient: group("AAAA")})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := &fakeSignal{}
			err := tt.call(NewMessagingService(signal))
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeInvalidInput), "got %v", err)
			assert.Zero(t, signal.calls())
		})
	}
}

func TestMessagingService_SendCompatMessages(t *testing.T) {
	svc := NewMessagingService(&fakeSignal{})

	_, err := svc.SendCompat(context.Background(), proto.SendCompatRequest{Message: "hi"})
	assert.EqualError(t, err, "Missing message recipient")

	_, err = svc.SendCompat(context.Background(), proto.SendCompatRequest{Recipients: []string{"+1", "+2"}})
	assert.EqualError(t, err, "Multi-recipient messages are not supported")
}

func TestMessagingService_SendCompat(t *testing.T) {
	signal := &fakeSignal{result: json.RawMessage(`{"timestamp":42}`)}
	svc := NewMessagingService(signal)

	resp, err := svc.SendCompat(context.Background(), proto.SendCompatRequest{
		Recipients: []string{"+15551234567"},
		Message:    "hello",
		Number:     "+15550000000",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), resp.Timestamp)
	require.Len(t, signal.sends, 1)
	assert.Equal(t, "+15551234567", signal.sends[0].Recipient)
}

func TestMessagingService_React(t *testing.T) {
	signal := &fakeSignal{}
	svc := NewMessagingService(signal)

	err := svc.React(context.Background(), proto.ReactRequest{
		Recipient: group(validGroupID),
		Emoji:     "👍",
		Author:    " +15551234567 ",
		Timestamp: 1700000000,
		Remove:    true,
	})
	require.NoError(t, err)
	require.Len(t, signal.reactions, 1)
	assert.Equal(t, proto.ReactionParams{
		GroupID:         validGroupID,
		Emoji:           "👍",
		TargetAuthor:    "+15551234567",
		TargetTimestamp: 1700000000,
		Remove:          true,
	}, signal.reactions[0])
}

func TestMessagingService_ReceiptDefaultsToRead(t *testing.T) {
	signal := &fakeSignal{}
	svc := NewMessagingService(signal)

	require.NoError(t, svc.Receipt(context.Background(), proto.ReceiptRequest{Recipient: "+1", Timestamp: 7}))
	require.NoError(t, svc.Receipt(context.Background(), proto.ReceiptRequest{Recipient: "+1", Timestamp: 8, Type: "viewed"}))

	require.Len(t, signal.receipts, 2)
	assert.Equal(t, proto.ReceiptRead, signal.receipts[0].Type)
	assert.Equal(t, proto.ReceiptViewed, signal.receipts[1].Type)
	assert.Equal(t, uint64(8), signal.receipts[1].TargetTimestamp)
}

func TestMessagingService_Typing(t *testing.T) {
	signal := &fakeSignal{}
	svc := NewMessagingService(signal)

	require.NoError(t, svc.Typing(context.Background(), proto.TypingRequest{Recipient: person("+1"), Stop: true}))
	require.Len(t, signal.typing, 1)
	assert.Equal(t, proto.TypingParams{Recipient: "+1", Stop: true}, signal.typing[0])
}

func TestMessagingService_UpstreamFailure(t *testing.T) {
	cause := errors.New("rpc error -1: boom")
	signal := &fakeSignal{err: cause}
	svc := NewMessagingService(signal)

	_, err := svc.Send(context.Background(), proto.SendRequest{Recipient: person("+1"), Message: "hi"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUpstream))
	assert.ErrorIs(t, err, cause)

	err = svc.Typing(context.Background(), proto.TypingRequest{Recipient: person("+1")})
	assert.True(t, IsCode(err, ErrCodeUpstream))
}

func TestMessagingService_UndecodableSendResult(t *testing.T) {
	svc := NewMessagingService(&fakeSignal{result: json.RawMessage(`"nope"`)})

	_, err := svc.Send(context.Background(), proto.SendRequest{Recipient: person("+1"), Message: "hi"})
	assert.True(t, IsCode(err, ErrCodeUpstream))
}
