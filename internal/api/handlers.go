package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/example/autoparts-storefront/internal/api/middleware"
	"github.com/example/autoparts-storefront/internal/checkout"
	"github.com/example/autoparts-storefront/internal/domain/cart"
	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/example/autoparts-storefront/internal/domain/order"
	"github.com/example/autoparts-storefront/internal/events"
	"github.com/example/autoparts-storefront/internal/infrastructure/backend"
	"github.com/example/autoparts-storefront/internal/session"
)

// Publisher pushes storefront events onto the stream. Optional; a nil
// publisher disables event publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handlers struct {
	sessions  *session.Manager
	backend   backend.Client
	publisher Publisher
}

func NewHandlers(sessions *session.Manager, client backend.Client, publisher Publisher) *Handlers {
	return &Handlers{
		sessions:  sessions,
		backend:   client,
		publisher: publisher,
	}
}

func (h *Handlers) visitorSession(r *http.Request) *session.Session {
	return h.sessions.Get(middleware.GetVisitorID(r.Context()))
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.backend.ListProducts(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")
	product, err := h.backend.ProductByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// Cart Handlers

type cartView struct {
	Lines   []cart.Line `json:"lines"`
	Totals  cart.Totals `json:"totals"`
	Warning string      `json:"warning,omitempty"`
}

func (h *Handlers) cartResponse(s *session.Session, shipping cart.ShippingType, warning string) cartView {
	return cartView{
		Lines:   s.Cart.Lines(),
		Totals:  s.Cart.Totals(shipping),
		Warning: warning,
	}
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)
	respondJSON(w, http.StatusOK, h.cartResponse(s, shippingType(r), ""))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.backend.ProductByID(r.Context(), req.ProductID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	err = s.Cart.AddItem(r.Context(), cart.Product{
		ID:    product.ID,
		Name:  product.Name,
		Price: product.Price,
		Brand: product.Brand,
		Image: product.Image,
	}, req.Quantity)

	h.respondCartMutation(w, r, s, err)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)
	lineID := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := s.Cart.SetQuantity(r.Context(), lineID, req.Quantity)
	h.respondCartMutation(w, r, s, err)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)
	lineID := extractPathParam(r.URL.Path, "/cart/items/")

	err := s.Cart.RemoveItem(r.Context(), lineID)
	h.respondCartMutation(w, r, s, err)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)

	err := s.Cart.Clear(r.Context())
	h.respondCartMutation(w, r, s, err)
}

// respondCartMutation maps a cart mutation result onto the wire. A storage
// failure is a warning, not an error: the in-memory cart took the change.
func (h *Handlers) respondCartMutation(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	if err != nil && !errors.Is(err, cart.ErrStorageUnavailable) {
		respondDomainError(w, err)
		return
	}

	warning := ""
	if err != nil {
		warning = "cart could not be saved; changes may not survive a restart"
	}
	respondJSON(w, http.StatusOK, h.cartResponse(s, shippingType(r), warning))
}

func (h *Handlers) GetTotals(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)
	respondJSON(w, http.StatusOK, s.Pricing.Quote(shippingType(r)))
}

// Coupon Handlers

func (h *Handlers) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	subtotal := s.Cart.Totals(cart.ShippingStandard).Subtotal
	applied, err := s.Coupons.Apply(r.Context(), req.Code, subtotal)
	if err != nil && applied == nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.Pricing.Quote(shippingType(r)))
}

func (h *Handlers) GetCoupon(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)

	subtotal := s.Cart.Totals(cart.ShippingStandard).Subtotal
	applied := s.Coupons.Applied(subtotal)
	if applied == nil {
		respondError(w, "no coupon applied", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, applied)
}

func (h *Handlers) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)
	s.Coupons.Remove()
	respondJSON(w, http.StatusOK, s.Pricing.Quote(shippingType(r)))
}

// Checkout Handler

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	s := h.visitorSession(r)

	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = order.PaymentCash
	}

	userID := middleware.GetUserID(r.Context())
	placed, err := s.Checkout.Submit(r.Context(), userID, req, s.Coupons)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.publishOrderPlaced(r, placed)
	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"order":   placed,
	})
}

func (h *Handlers) publishOrderPlaced(r *http.Request, o *order.Order) {
	if h.publisher == nil {
		return
	}

	email := ""
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		email = claims.Email
	}

	items := make([]events.OrderPlacedItem, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, events.OrderPlacedItem{
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	envelope, err := events.Wrap(events.TypeOrderPlaced, events.OrderPlaced{
		OrderID: o.ID,
		UserID:  o.UserID,
		Email:   email,
		Total:   o.Total,
		Items:   items,
	})
	if err != nil {
		log.Printf("[API] Failed to encode OrderPlaced event: %v", err)
		return
	}
	if err := h.publisher.Publish(r.Context(), o.ID, envelope); err != nil {
		log.Printf("[API] Failed to publish OrderPlaced event for order %s: %v", o.ID, err)
	}
}

// Helpers

func shippingType(r *http.Request) cart.ShippingType {
	if r.URL.Query().Get("shipping") == string(cart.ShippingExpress) {
		return cart.ShippingExpress
	}
	return cart.ShippingStandard
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondDomainError maps domain failures onto HTTP statuses. Stock
// problems carry their availability details so the caller can re-render
// the cart.
func respondDomainError(w http.ResponseWriter, err error) {
	var stockErr *cart.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		return
	}

	var shortageErr *checkout.StockShortageError
	if errors.As(err, &shortageErr) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"shortages": shortageErr.Shortages,
		})
		return
	}

	switch {
	case errors.Is(err, coupon.ErrInvalidCoupon):
		respondError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, checkout.ErrAuthRequired):
		respondJSON(w, http.StatusUnauthorized, map[string]any{
			"error":         err.Error(),
			"requires_auth": true,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, backend.ErrProductNotFound):
		respondError(w, "product not found", http.StatusNotFound)
	case errors.Is(err, backend.ErrServiceUnavailable):
		respondError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, checkout.ErrOrderCreationFailed):
		respondError(w, err.Error(), http.StatusInternalServerError)
	default:
		respondError(w, err.Error(), http.StatusInternalServerError)
	}
}

func extractPathParam(path, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
}
