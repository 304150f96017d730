// Package order places the checkout of a session with the order service.
package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

// FallbackMessage is shown when the order service gave no usable message.
const FallbackMessage = "failed to place order"

var submissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_order_submissions_total",
		Help: "Total number of order submissions by result",
	},
	[]string{"result"},
)

// Checkout is the part of the checkout aggregate a submission drives.
type Checkout interface {
	BeginSubmit(ctx context.Context) (domain.CheckoutSnapshot, error)
	CompleteSubmit(ctx context.Context) error
	FailSubmit(cause error)
	AbandonSubmit()
	Released() bool
}

// EventPublisher announces accepted orders.
type EventPublisher interface {
	PublishOrderSubmitted(ctx context.Context, sessionID string, order *domain.Order, req domain.OrderRequest) error
}

// Submitter posts orders to the order service.
type Submitter struct {
	http           httpclient.Doer
	endpoint       string
	defaultCountry string
	events         EventPublisher
	logger         *slog.Logger
}

// NewSubmitter creates a submitter for the order service at baseURL. doer
// must not retry: a repeated POST could create a second order.
func NewSubmitter(doer httpclient.Doer, baseURL, defaultCountry string, events EventPublisher, logger *slog.Logger) *Submitter {
	return &Submitter{
		http:           doer,
		endpoint:       strings.TrimRight(baseURL, "/") + "/api/v1/orders",
		defaultCountry: defaultCountry,
		events:         events,
		logger:         logger,
	}
}

// BuildRequest maps a checkout snapshot to the order service payload. The
// total is computed here from the snapshot items.
func BuildRequest(snap domain.CheckoutSnapshot, user, defaultCountry string) domain.OrderRequest {
	items := make([]domain.OrderItem, 0, len(snap.OrderItems))
	for _, item := range snap.OrderItems {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice.InexactFloat64(),
			VendorID:  item.VendorID,
		})
	}

	var shipping domain.ShippingAddress
	if snap.ShippingAddress != nil {
		shipping = *snap.ShippingAddress
	}
	if shipping.Country == "" {
		shipping.Country = defaultCountry
	}

	return domain.OrderRequest{
		Items:           items,
		User:            user,
		ShippingAddress: domain.NewOrderAddress(shipping),
		TotalPrice:      domain.TotalOf(snap.OrderItems).Round(2).InexactFloat64(),
		Status:          domain.OrderStatusProcessing,
		PaymentInfo: domain.PaymentInfo{
			Method: snap.PaymentMethod,
			Status: domain.PaymentStatusPending,
		},
	}
}

// Submit places the order held by checkout. On success the checkout and cart
// are cleared and the created order is returned, even when ctx ended or
// checkout was released while the request was in flight. On failure the
// checkout keeps its data, records the failure and the returned error carries
// the order service's message; a failure after ctx ended or checkout was
// released is discarded and checkout is left alone.
func (s *Submitter) Submit(ctx context.Context, checkout Checkout, user string) (*domain.Order, error) {
	snap, err := checkout.BeginSubmit(ctx)
	if err != nil {
		return nil, err
	}

	req := BuildRequest(snap, user, s.defaultCountry)
	order, postErr := s.post(ctx, req)
	if postErr == nil {
		s.complete(context.WithoutCancel(ctx), checkout, order, req)
		return order, nil
	}

	if ctx.Err() != nil || checkout.Released() {
		checkout.AbandonSubmit()
		submissionsTotal.WithLabelValues("discarded").Inc()
		s.logger.WarnContext(ctx, "order submission outcome discarded", slog.String("error", postErr.Error()))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Conflict("checkout was closed before the order completed")
	}

	checkout.FailSubmit(postErr)
	submissionsTotal.WithLabelValues("failed").Inc()
	s.logger.ErrorContext(ctx, "order submission failed", slog.String("error", postErr.Error()))
	return nil, postErr
}

// complete clears the stored checkout of an accepted order and announces it.
func (s *Submitter) complete(ctx context.Context, checkout Checkout, order *domain.Order, req domain.OrderRequest) {
	if err := checkout.CompleteSubmit(ctx); err != nil {
		// The order exists; only the local reset failed.
		s.logger.ErrorContext(ctx, "failed to reset checkout after order",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	submissionsTotal.WithLabelValues("succeeded").Inc()
	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.Float64("total_price", req.TotalPrice),
		slog.Int("items", len(req.Items)),
	)

	if s.events != nil {
		if err := s.events.PublishOrderSubmitted(ctx, logger.SessionIDFromContext(ctx), order, req); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order submitted event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Submitter) post(ctx context.Context, payload domain.OrderRequest) (*domain.Order, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("marshal order: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create order request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		return nil, failure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := httpclient.ReadErrorMessage(resp)
		if msg == "" {
			msg = FallbackMessage
		}
		return nil, apperrors.OrderFailed(msg, fmt.Errorf("order service returned status %d", resp.StatusCode))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.OrderFailed(FallbackMessage, fmt.Errorf("read order response: %w", err))
	}
	order, err := decodeOrder(raw)
	if err != nil {
		return nil, apperrors.OrderFailed(FallbackMessage, err)
	}
	return order, nil
}

// failure turns a transport error into an order failure, keeping the
// downstream message of a 5xx response when there is one.
func failure(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		msg := httpclient.ErrorMessage(statusErr.Body)
		if msg == "" {
			msg = FallbackMessage
		}
		return apperrors.OrderFailed(msg, err)
	}
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return apperrors.OrderFailed("order service is temporarily unavailable", err)
	}
	return apperrors.OrderFailed(FallbackMessage, err)
}

// decodeOrder accepts the order itself or the order wrapped in {"data": ...}.
func decodeOrder(raw []byte) (*domain.Order, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		raw = envelope.Data
	}

	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &order, nil
}
