package notifications

import (
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
	"github.com/sirupsen/logrus"
)

// Notifier pushes operator alerts via Shoutrrr. A nil *Notifier is valid
// and means notifications are disabled.
type Notifier struct {
	sr *router.ServiceRouter
}

// NewNotifier initializes a new Notifier with the provided Shoutrrr URLs.
func NewNotifier(urls []string) (*Notifier, error) {
	sr, err := router.New(nil, urls...)
	if err != nil {
		return nil, err
	}
	return &Notifier{sr: sr}, nil
}

// Send pushes a message to all configured services. Failures are logged and
// swallowed; an alert must never break a dashboard flow.
func (n *Notifier) Send(title, message string) {
	params := types.Params{
		"title": title,
	}
	for _, err := range n.sr.Send(message, &params) {
		if err != nil {
			logrus.WithError(err).Error("Failed to send notification")
		}
	}
}
