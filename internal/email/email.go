// Package email provides the outbound email port, the AWS SES adapter, and
// the Liquid-rendered lifecycle notification templates.
package email

import "context"

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
