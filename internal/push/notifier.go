package push

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/buscoapp/busco/internal/model"
	"github.com/buscoapp/busco/internal/store"

	"github.com/shopspring/decimal"
)

// Notifier fans promotion alerts out to every registered subscription.
// Expired subscriptions are pruned as they are discovered.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(svc *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		service: svc,
		subs:    subs,
		logger:  logger,
	}
}

// PromotionAlert notifies all subscribers that a product went on promotion.
// Callers run it in a goroutine; failures are logged, never surfaced to the
// request that recorded the price.
func (n *Notifier) PromotionAlert(product *model.Product, market *model.Market, price decimal.Decimal) {
	if !n.service.Enabled() {
		return
	}

	subs, err := n.subs.ListAll()
	if err != nil {
		n.logger.Error("promotion alert: list subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	amount := strings.Replace(price.StringFixed(2), ".", ",", 1)
	payload := Payload{
		Title: "Promoção!",
		Body:  fmt.Sprintf("%s por R$ %s no %s", product.Name, amount, market.Name),
		URL:   fmt.Sprintf("/products/%d", product.ID),
		Tag:   fmt.Sprintf("promo-%d-%d", product.ID, market.ID),
	}

	for i := range subs {
		sub := &subs[i]
		if err := n.service.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					n.logger.Warn("prune expired subscription", "error", err)
				}
				continue
			}
			n.logger.Warn("promotion alert: send", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
