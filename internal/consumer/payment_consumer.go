package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dumu-waks/service-booking/internal/application"
	"github.com/dumu-waks/service-booking/internal/domain/payment"
	"github.com/dumu-waks/service-booking/internal/events"
	"github.com/dumu-waks/service-booking/pkg/auth"
	"github.com/dumu-waks/service-booking/pkg/domain"
	"github.com/dumu-waks/service-booking/pkg/kafka"
)

// PaymentConsumer processes confirmations from the mobile-money pipeline.
// Each payment.completed event is recorded in the ledger and then applied to
// the booking: fee payments escrow the deposit, balance payments verify the
// booking.
type PaymentConsumer struct {
	service *application.BookingService
	gateway payment.Gateway
	logger  *zap.Logger
}

// NewPaymentConsumer creates a new PaymentConsumer.
func NewPaymentConsumer(service *application.BookingService, gateway payment.Gateway, logger *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{service: service, gateway: gateway, logger: logger}
}

// Handle is the message handler for the payment events topic.
func (c *PaymentConsumer) Handle(ctx context.Context, msg kafkago.Message) error {
	ce, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Warn("skipping malformed payment event", zap.Error(err))
		return nil
	}

	if ce.Type != events.PaymentCompleted {
		return nil
	}

	var evt events.PaymentCompletedEvent
	if err := ce.ParseData(&evt); err != nil {
		c.logger.Warn("skipping payment event with malformed data",
			zap.String("event_id", ce.ID),
			zap.Error(err),
		)
		return nil
	}

	return c.handlePaymentCompleted(ctx, evt)
}

func (c *PaymentConsumer) handlePaymentCompleted(ctx context.Context, evt events.PaymentCompletedEvent) error {
	if err := c.recordTransaction(ctx, evt); err != nil {
		return err
	}

	actor := application.Actor{ID: evt.PayerID, Role: auth.RoleCustomer}

	var err error
	switch evt.Purpose {
	case events.PurposeBookingFee:
		_, err = c.service.ConfirmBookingFee(ctx, evt.BookingID, actor, evt.TransactionID)
	case events.PurposeBalance:
		_, err = c.service.ConfirmBalancePayment(ctx, evt.BookingID, actor, evt.TransactionID)
	default:
		c.logger.Warn("skipping payment event with unknown purpose",
			zap.String("purpose", evt.Purpose),
			zap.String("booking_id", evt.BookingID.String()),
		)
		return nil
	}

	if err != nil {
		// Domain rejections (wrong state, wrong amount, wrong payer) are
		// terminal for this message; retrying cannot fix them.
		// Infrastructure errors propagate so the offset is not committed.
		var invalidState *domain.InvalidStateError
		var mismatch *domain.AmountMismatchError
		var notFound *domain.NotFoundError
		var forbidden *domain.ForbiddenError
		var validation *domain.ValidationError
		if errors.As(err, &invalidState) || errors.As(err, &mismatch) || errors.As(err, &notFound) ||
			errors.As(err, &forbidden) || errors.As(err, &validation) {
			c.logger.Error("payment confirmation rejected",
				zap.String("booking_id", evt.BookingID.String()),
				zap.String("transaction_id", evt.TransactionID.String()),
				zap.String("purpose", evt.Purpose),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("failed to apply payment: %w", err)
	}

	c.logger.Info("payment applied to booking",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("purpose", evt.Purpose),
		zap.Int64("amount", evt.Amount),
	)
	return nil
}

// recordTransaction writes the confirmed payment into the ledger so the
// booking service can validate it. Replays of an already recorded
// transaction are treated as no-ops.
func (c *PaymentConsumer) recordTransaction(ctx context.Context, evt events.PaymentCompletedEvent) error {
	existing, err := c.gateway.FindTransaction(ctx, evt.TransactionID)
	if err == nil && existing != nil {
		return nil
	}
	var notFound *domain.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to look up transaction: %w", err)
	}

	txType := payment.TypeBookingFee
	if evt.Purpose == events.PurposeBalance {
		txType = payment.TypeBalance
	}
	completedAt := evt.OccurredAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	tx := &payment.Transaction{
		ID:          evt.TransactionID,
		BookingID:   evt.BookingID,
		UserID:      evt.PayerID,
		Type:        txType,
		Amount:      evt.Amount,
		Currency:    evt.Currency,
		Status:      payment.StatusCompleted,
		Provider:    "mpesa",
		ProviderRef: evt.ProviderRef,
		CreatedAt:   completedAt,
		CompletedAt: &completedAt,
	}
	if err := c.gateway.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to record payment transaction: %w", err)
	}
	return nil
}
