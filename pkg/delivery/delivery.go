// Package delivery abstracts the external channels notifications leave
// through. The fan-out worker renders messages and hands them to whichever
// senders are configured; a failed send never fails the mutation that caused
// it.
package delivery

import "context"

// Message is one rendered notification ready for an external channel. To is
// channel-specific: an email address for the mail sender, a chat id for the
// Telegram sender.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one channel.
type Sender interface {
	// Send delivers msg. Implementations must honor ctx cancellation.
	Send(ctx context.Context, msg Message) error
	// Name identifies the channel in logs.
	Name() string
}
