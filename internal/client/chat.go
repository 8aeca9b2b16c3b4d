package client

import (
	"context"
	"sync"
	"time"
)

// DefaultChatInterval is how often a chat subscription polls.
const DefaultChatInterval = 3 * time.Second

// ChatHandlers receive chat updates. Calls are serialized and none happen after Close
// returns.
type ChatHandlers struct {
	OnMessages func([]Message)
	OnError    func(error)
}

// ChatSubscription polls one session's messages until closed.
type ChatSubscription struct {
	c         *Client
	sessionID int64
	handlers  ChatHandlers

	cancel context.CancelFunc
	done   chan struct{}

	// deliver serializes handler calls with Close.
	deliver sync.Mutex
	closed  bool

	mu       sync.Mutex
	messages []Message
	// sends counts completed Sends. sent holds the ones a poll may not have seen yet.
	sends uint64
	sent  []sentMessage
}

type sentMessage struct {
	seq uint64
	msg Message
}

// SubscribeChat fetches immediately and then once per interval. A zero interval means
// DefaultChatInterval. The subscription ends on Close or when ctx is done.
func (c *Client) SubscribeChat(ctx context.Context, sessionID int64, interval time.Duration, h ChatHandlers) *ChatSubscription {
	if interval <= 0 {
		interval = DefaultChatInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &ChatSubscription{
		c:         c,
		sessionID: sessionID,
		handlers:  h,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go sub.run(ctx, interval)
	return sub
}

func (s *ChatSubscription) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *ChatSubscription) poll(ctx context.Context) {
	s.mu.Lock()
	since := s.sends
	s.mu.Unlock()

	msgs, err := s.c.Messages.GetSessionMessages(ctx, s.sessionID)

	s.deliver.Lock()
	defer s.deliver.Unlock()
	if s.closed || ctx.Err() != nil {
		return
	}
	if err != nil {
		if s.handlers.OnError != nil {
			s.handlers.OnError(err)
		}
		return
	}

	s.mu.Lock()
	s.messages = s.merge(msgs, since)
	snap := s.snapshot()
	s.mu.Unlock()

	if s.handlers.OnMessages != nil {
		s.handlers.OnMessages(snap)
	}
}

// Messages returns the last known message list.
func (s *ChatSubscription) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// merge appends messages sent after the fetch started that it did not return. Sends
// the fetch started after are settled and dropped from the pending list.
func (s *ChatSubscription) merge(fetched []Message, since uint64) []Message {
	seen := make(map[int64]bool, len(fetched))
	for _, m := range fetched {
		seen[m.ID] = true
	}

	pending := s.sent[:0]
	for _, p := range s.sent {
		if p.seq <= since {
			continue
		}
		pending = append(pending, p)
		if !seen[p.msg.ID] {
			fetched = append(fetched, p.msg)
		}
	}
	s.sent = pending
	return fetched
}

func (s *ChatSubscription) snapshot() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send posts text and appends the message the server returned. On failure nothing is
// appended and the caller keeps its draft.
func (s *ChatSubscription) Send(ctx context.Context, text string) (*Message, error) {
	m, err := s.c.Messages.SendSessionMessage(ctx, s.sessionID, text)
	if err != nil {
		return nil, err
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()
	if s.closed {
		return m, nil
	}

	s.mu.Lock()
	s.sends++
	s.sent = append(s.sent, sentMessage{seq: s.sends, msg: *m})
	s.messages = append(s.messages, *m)
	snap := s.snapshot()
	s.mu.Unlock()

	if s.handlers.OnMessages != nil {
		s.handlers.OnMessages(snap)
	}
	return m, nil
}

// Close stops polling and waits for the poller to exit. It is safe to call more than once
// but not from inside a handler.
func (s *ChatSubscription) Close() {
	s.deliver.Lock()
	s.closed = true
	s.deliver.Unlock()

	s.cancel()
	<-s.done
}

// Run is a stretch of consecutive messages from one sender.
type Run struct {
	Sender   string
	Name     string
	Image    string
	Messages []Message
}

// GroupRuns collapses consecutive messages from the same sender. Order is kept as given.
func GroupRuns(msgs []Message) []Run {
	var runs []Run
	for _, m := range msgs {
		if n := len(runs); n > 0 && runs[n-1].Sender == m.Sender {
			runs[n-1].Messages = append(runs[n-1].Messages, m)
			continue
		}
		runs = append(runs, Run{
			Sender:   m.Sender,
			Name:     m.SenderName,
			Image:    m.SenderImage,
			Messages: []Message{m},
		})
	}
	return runs
}
