package notifier

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by a channel that lacks credentials
var ErrNotConfigured = errors.New("notifier not configured")

// Message is a rendered report ready for delivery
type Message struct {
	Subject string
	Text    string // plain text / Markdown body
	HTML    string // optional HTML alternative
}

// Notifier delivers a rendered report
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message, recipients []string) error
}

// NotifyError records a delivery failure on one channel
type NotifyError struct {
	Channel string
	Err     error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Channel, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// Multi fans a message out to every channel. All channels are attempted;
// failures are joined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, msg Message, recipients []string) error {
	if len(m) == 0 {
		return &NotifyError{Channel: "multi", Err: ErrNotConfigured}
	}

	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg, recipients); err != nil {
			var ne *NotifyError
			if !errors.As(err, &ne) {
				err = &NotifyError{Channel: n.Name(), Err: err}
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
