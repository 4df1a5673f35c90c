// Package notify fans alert and liveness messages out to the configured
// notification services through shoutrrr. One router covers every URL, so
// SMS, email and push targets all get the same message.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/third-eye-sec/thirdeye/internal/conf"
)

// Notifier delivers a message to the configured services.
type Notifier interface {
	// Send delivers the message. attachmentPath, when non-empty, names a
	// saved image; it is appended to the body since the transports carry
	// text only.
	Send(ctx context.Context, title, body, attachmentPath string) error
}

// ShoutrrrNotifier implements Notifier over a shoutrrr service router.
type ShoutrrrNotifier struct {
	urls   []string
	sender *router.ServiceRouter
}

// NoopNotifier drops every message. Used when notifications are disabled.
type NoopNotifier struct{}

// Send implements Notifier.
func (NoopNotifier) Send(ctx context.Context, title, body, attachmentPath string) error {
	return nil
}

// New builds a notifier from the notification settings. When notifications
// are disabled it returns a NoopNotifier so callers need no branch.
func New(settings conf.NotifySettings) (Notifier, error) {
	if !settings.Enabled {
		return NoopNotifier{}, nil
	}
	if len(settings.URLs) == 0 {
		return nil, fmt.Errorf("notifications enabled but no service URLs configured")
	}

	sender, err := shoutrrr.CreateSender(settings.URLs...)
	if err != nil {
		return nil, fmt.Errorf("creating notification sender: %w", err)
	}
	sender.Timeout = 15 * time.Second
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrNotifier{
		urls:   slices.Clone(settings.URLs),
		sender: sender,
	}, nil
}

// Send implements Notifier.
func (s *ShoutrrrNotifier) Send(ctx context.Context, title, body, attachmentPath string) error {
	_ = ctx // router handles its own timeouts

	if attachmentPath != "" {
		body = fmt.Sprintf("%s\nimage: %s", body, attachmentPath)
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	errs := s.sender.Send(body, &params)
	for _, e := range errs {
		if e != nil {
			return fmt.Errorf("sending notification: %w", e)
		}
	}
	return nil
}
