// Package mailer delivers transactional email through an external gateway.
package mailer

import (
	"context"
	"errors"
)

// ErrSendFailed indicates the gateway did not accept the message.
var ErrSendFailed = errors.New("mail send failed")

// Message is a single outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer dispatches messages out of band. Implementations must treat a
// returned error as "not delivered": callers roll back state that depends
// on the message reaching the recipient.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
