package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/freightdocs/internal/model"
)

// SubscriptionStore is the slice of the push store the notifier needs.
type SubscriptionStore interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	ListByTeam(teamID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Notifier fans a payload out to every device a user or team has registered.
// Subscriptions the push service reports as gone are removed.
type Notifier struct {
	service sender
	subs    SubscriptionStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	n := &Notifier{subs: subs, logger: logger}
	if service != nil && service.Configured() {
		n.service = service
	}
	return n
}

// NotifyUser pushes to all of userID's devices.
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, title, body, url string) error {
	if n.service == nil {
		return nil
	}
	subs, err := n.subs.ListByUser(userID)
	if err != nil {
		return err
	}
	return n.fanOut(ctx, subs, Payload{Title: title, Body: body, URL: url})
}

// NotifyTeam pushes to every device registered under teamID.
func (n *Notifier) NotifyTeam(ctx context.Context, teamID int64, payload Payload) error {
	if n.service == nil {
		return nil
	}
	subs, err := n.subs.ListByTeam(teamID)
	if err != nil {
		return err
	}
	return n.fanOut(ctx, subs, payload)
}

func (n *Notifier) fanOut(ctx context.Context, subs []model.PushSubscription, payload Payload) error {
	var errs []error
	for i := range subs {
		sub := &subs[i]
		err := n.service.Send(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			n.logger.Info("removing expired push subscription", "subscription_id", sub.ID)
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
