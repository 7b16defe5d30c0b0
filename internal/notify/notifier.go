// Package notify defines the notification delivery boundary. Delivery
// is best effort: callers wrap Send in a retry policy and a circuit
// breaker, and a failed notification never fails the business
// operation that triggered it.
package notify

import "context"

// Message is one notification to a single recipient.
type Message struct {
	RecipientID int64  `json:"recipient_id"`
	Text        string `json:"text"`
}

// Notifier delivers messages to an external chat/bot transport.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
