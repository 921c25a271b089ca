package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/buscoapp/busco/internal/auth"
	"github.com/buscoapp/busco/internal/billing"
	"github.com/buscoapp/busco/internal/model"
	"github.com/buscoapp/busco/internal/store"

	stripe "github.com/stripe/stripe-go/v82"
)

// maxWebhookBody bounds Stripe webhook payloads.
const maxWebhookBody = 65536

type BillingHandler struct {
	client *billing.Client
	users  *store.UserStore
	logger *slog.Logger
}

func NewBillingHandler(client *billing.Client, users *store.UserStore, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{client: client, users: users, logger: logger}
}

// Checkout handles POST /api/billing/checkout. A free user gets a Stripe
// checkout URL for the premium subscription.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
		return
	}

	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	if user.AccountType != model.AccountFree {
		writeError(w, http.StatusConflict, "account already upgraded")
		return
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = h.client.CreateCustomer(user.Name, user.Email)
		if err != nil {
			h.logger.Error("create stripe customer", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start checkout")
			return
		}
		if err := h.users.SetStripeCustomerID(user.ID, customerID); err != nil {
			h.logger.Error("save stripe customer id", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start checkout")
			return
		}
	}

	url, err := h.client.CreateCheckoutSession(customerID)
	if err != nil {
		h.logger.Error("create checkout session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal handles POST /api/billing/portal for premium users managing their
// subscription.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
		return
	}

	var req struct {
		ReturnURL string `json:"return_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil || user.StripeCustomerID == "" {
		writeError(w, http.StatusNotFound, "no billing profile")
		return
	}

	url, err := h.client.CreateBillingPortalSession(user.StripeCustomerID, req.ReturnURL)
	if err != nil {
		h.logger.Error("create billing portal session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open billing portal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook handles POST /api/billing/webhook. A completed checkout upgrades
// the customer's account; a deleted subscription downgrades it.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	event, err := h.client.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *BillingHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}
	if sess.Customer == nil {
		h.logger.Error("webhook: checkout session missing customer")
		return
	}

	user, err := h.users.GetByStripeCustomerID(sess.Customer.ID)
	if err != nil || user == nil {
		h.logger.Error("webhook: resolve customer", "customer", sess.Customer.ID, "error", err)
		return
	}

	if _, err := h.users.SetAccountType(user.ID, model.AccountPremium); err != nil {
		h.logger.Error("webhook: upgrade account", "user_id", user.ID, "error", err)
		return
	}
	h.logger.Info("account upgraded to premium", "user_id", user.ID)
}

func (h *BillingHandler) handleSubscriptionDeleted(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}
	if sub.Customer == nil {
		return
	}

	user, err := h.users.GetByStripeCustomerID(sub.Customer.ID)
	if err != nil || user == nil {
		h.logger.Error("webhook: resolve customer", "customer", sub.Customer.ID, "error", err)
		return
	}
	// Admins keep their role regardless of billing state.
	if user.AccountType != model.AccountPremium {
		return
	}

	if _, err := h.users.SetAccountType(user.ID, model.AccountFree); err != nil {
		h.logger.Error("webhook: downgrade account", "user_id", user.ID, "error", err)
		return
	}
	h.logger.Info("account downgraded to free", "user_id", user.ID)
}
