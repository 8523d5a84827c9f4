// Package notifications turns outcomes into user-visible toasts on the
// notify topic and keeps a short feed of recent ones.
package notifications

import (
	"context"
	"strings"

	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// Notifier publishes notify events.
type Notifier struct {
	pub  broadcast.Publisher
	logg *logger.Logger
}

func NewNotifier(pub broadcast.Publisher, logg *logger.Logger) *Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Notifier{pub: pub, logg: logg}
}

// Success publishes a success toast.
func (n *Notifier) Success(ctx context.Context, message string) {
	n.publish(ctx, message, enums.SeveritySuccess)
}

// Error publishes an error toast for err. Server-side failures use the
// code's public message so internals never reach the UI.
func (n *Notifier) Error(ctx context.Context, err error) {
	if err == nil {
		return
	}
	n.publish(ctx, MessageFor(err), enums.SeverityError)
}

// MessageFor returns the user-facing text for err.
func MessageFor(err error) string {
	return pkgerrors.PublicText(err)
}

func (n *Notifier) publish(ctx context.Context, message string, severity enums.Severity) {
	if n == nil || n.pub == nil {
		return
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	n.pub.Publish(ctx, broadcast.Notify{Message: message, Severity: severity})
}
