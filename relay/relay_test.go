package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookURL = "http://hooks.example.com/signal"

var errEnded = fmt.Errorf("subscription closed: %w", io.EOF)

type fakeStream struct {
	mu       sync.Mutex
	items    []json.RawMessage
	itemErrs map[int]error
	next     int
	open     bool
	blockEnd bool

	unsubscribes int
	unsubErr     error
}

func newFakeStream(n int) *fakeStream {
	s := &fakeStream{open: true, itemErrs: map[int]error{}}
	for i := 0; i < n; i++ {
		s.items = append(s.items, json.RawMessage(fmt.Sprintf(`{"envelope":{"seq":%d}}`, i)))
	}
	return s
}

func (s *fakeStream) Next(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	if s.next < len(s.items) {
		i := s.next
		s.next++
		s.mu.Unlock()
		if err := s.itemErrs[i]; err != nil {
			return nil, err
		}
		return s.items[i], nil
	}
	block := s.blockEnd
	s.open = false
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, errEnded
}

func (s *fakeStream) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribes++
	return s.unsubErr
}

func subscribeTo(s *fakeStream) SubscribeFunc {
	return func(ctx context.Context) (Stream, error) {
		return s, nil
	}
}

func mockWebhook(responder httpmock.Responder) (*Webhook, *httpmock.MockTransport) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, webhookURL, responder)
	return NewWebhook(webhookURL, &http.Client{Transport: mock}), mock
}

func TestRelay_IsolatesDeliveryFailures(t *testing.T) {
	const n = 9
	stream := newFakeStream(n)

	var mu sync.Mutex
	var received []string
	attempt := 0
	webhook, mock := mockWebhook(func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(body))
		attempt++
		if attempt%2 == 0 {
			return httpmock.NewStringResponse(http.StatusBadGateway, "down"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	r := New(subscribeTo(stream), webhook)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, n, mock.GetTotalCallCount())
	require.Len(t, received, n)
	for i, body := range received {
		assert.JSONEq(t, string(stream.items[i]), body)
	}
	assert.Equal(t, 1, stream.unsubscribes)
	assert.False(t, stream.open)
	assert.Equal(t, StateTerminated, r.State())
}

func TestRelay_NetworkErrorsDoNotStopForwarding(t *testing.T) {
	stream := newFakeStream(3)
	webhook, mock := mockWebhook(httpmock.NewErrorResponder(errors.New("connection refused")))

	r := New(subscribeTo(stream), webhook)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 3, mock.GetTotalCallCount())
	assert.Equal(t, 1, stream.unsubscribes)
}

func TestRelay_SkipsUndecodableItems(t *testing.T) {
	stream := newFakeStream(4)
	stream.itemErrs[1] = errors.New("malformed notification payload")
	webhook, mock := mockWebhook(httpmock.NewStringResponder(http.StatusNoContent, ""))

	var published []json.RawMessage
	r := New(subscribeTo(stream), webhook, WithPublisher(func(ev json.RawMessage) {
		published = append(published, ev)
	}))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 3, mock.GetTotalCallCount())
	assert.Equal(t, []json.RawMessage{stream.items[0], stream.items[2], stream.items[3]}, published)
}

func TestRelay_SubscribeFailureIsFatal(t *testing.T) {
	cause := errors.New("daemon unavailable")
	webhook, mock := mockWebhook(httpmock.NewStringResponder(http.StatusOK, ""))

	r := New(func(ctx context.Context) (Stream, error) { return nil, cause }, webhook)
	err := r.Run(context.Background())

	assert.ErrorIs(t, err, cause)
	assert.Zero(t, mock.GetTotalCallCount())
	assert.Equal(t, StateTerminated, r.State())
}

func TestRelay_UnsubscribeErrorIsResult(t *testing.T) {
	stream := newFakeStream(1)
	stream.unsubErr = errors.New("transport closed")
	webhook, _ := mockWebhook(httpmock.NewStringResponder(http.StatusOK, ""))

	err := New(subscribeTo(stream), webhook).Run(context.Background())
	assert.ErrorIs(t, err, stream.unsubErr)
	assert.Equal(t, 1, stream.unsubscribes)
}

func TestRelay_CancelStillUnsubscribes(t *testing.T) {
	stream := newFakeStream(2)
	stream.blockEnd = true
	webhook, mock := mockWebhook(httpmock.NewStringResponder(http.StatusOK, ""))

	r := New(subscribeTo(stream), webhook)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mock.GetTotalCallCount() == 2 && r.State() == StateForwarding
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
	assert.Equal(t, 1, stream.unsubscribes)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "subscribing", StateSubscribing.String())
	assert.Equal(t, "forwarding", StateForwarding.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}
