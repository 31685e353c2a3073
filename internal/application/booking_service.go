package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/dumu-waks/service-booking/internal/domain/booking"
	"github.com/dumu-waks/service-booking/internal/domain/payment"
	"github.com/dumu-waks/service-booking/internal/domain/support"
	"github.com/dumu-waks/service-booking/internal/events"
	"github.com/dumu-waks/service-booking/pkg/auth"
	"github.com/dumu-waks/service-booking/pkg/domain"
)

// Notifier is the best-effort side channel for counterparty notifications.
// Failures are logged and swallowed; they never affect a transition's result.
type Notifier interface {
	Notify(ctx context.Context, eventType, key string, payload interface{}) error
}

// maxTransitionAttempts bounds the reload-reapply loop on optimistic-lock
// conflicts. Each retry re-runs the full validation against fresh state.
const maxTransitionAttempts = 3

// BookingService is the status transition engine: the single entry point for
// every booking mutation. It loads the aggregate, authorizes the actor,
// applies the domain transition, persists with optimistic locking and fires
// a best-effort notification.
type BookingService struct {
	repo     bookingDomain.BookingRepository
	gateway  payment.Gateway
	tickets  support.TicketRepository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	gateway payment.Gateway,
	tickets support.TicketRepository,
	notifier Notifier,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:     repo,
		gateway:  gateway,
		tickets:  tickets,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking creates a new booking for the given customer.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	pricing := bookingDomain.NewPricing(req.BasePrice, req.ServiceCharge, req.Discount, domain.CurrencyKES)

	bk, err := bookingDomain.NewBooking(
		customerID,
		req.PreferredTechnician,
		req.ServiceType,
		req.Description,
		pricing,
		req.ServiceDate,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.notifyBooking(ctx, events.BookingCreated, bk, bk.Fee().Amount, "")

	result := toBookingDTO(bk)
	return &result, nil
}

// ConfirmBookingFee validates the fee payment transaction and escrows the
// deposit. The booking moves to assigned when a preferred technician was
// named, otherwise to matching.
func (s *BookingService) ConfirmBookingFee(ctx context.Context, bookingID uuid.UUID, actor Actor, transactionID uuid.UUID) (*BookingDTO, error) {
	tx, err := s.gateway.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != payment.StatusCompleted {
		return nil, domain.NewValidationError(fmt.Sprintf("transaction %s is not completed", transactionID))
	}

	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := s.requireCustomer(bk, actor); err != nil {
			return err
		}
		return bk.ConfirmFee(tx.ID, tx.Amount, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingFeeConfirmed, bk, bk.Fee().Amount, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// AssignTechnician assigns a technician to a matching booking (admin/support
// or the matching flow).
func (s *BookingService) AssignTechnician(ctx context.Context, bookingID uuid.UUID, actor Actor, technicianID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := requireStaff(actor); err != nil {
			return err
		}
		return bk.AssignTechnician(technicianID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingTechnicianAssigned, bk, 0, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// AcceptBooking commits the assigned technician to the job.
func (s *BookingService) AcceptBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := requireAssignedTechnician(bk, actor); err != nil {
			return err
		}
		return bk.Accept(actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingAccepted, bk, 0, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// RejectBooking declines the job and clears the technician.
func (s *BookingService) RejectBooking(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := requireAssignedTechnician(bk, actor); err != nil {
			return err
		}
		return bk.Reject(actor.ID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingRejected, bk, 0, reason)
	result := toBookingDTO(bk)
	return &result, nil
}

// SubmitCounterOffer attaches a technician's price revision to the booking.
func (s *BookingService) SubmitCounterOffer(ctx context.Context, bookingID uuid.UUID, actor Actor, proposedAmount int64, reason string) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := requireAssignedTechnician(bk, actor); err != nil {
			return err
		}
		return bk.SubmitCounterOffer(actor.ID, proposedAmount, reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingCounterOfferSubmitted, bk, proposedAmount, reason)
	result := toBookingDTO(bk)
	return &result, nil
}

// RespondToCounterOffer records the customer's decision on a counter-offer.
func (s *BookingService) RespondToCounterOffer(ctx context.Context, bookingID uuid.UUID, actor Actor, accepted bool, notes string) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := s.requireCustomer(bk, actor); err != nil {
			return err
		}
		return bk.RespondToCounterOffer(actor.ID, accepted, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingCounterOfferResponded, bk, bk.Pricing().TotalAmount, notes)
	result := toBookingDTO(bk)
	return &result, nil
}

// MarkEnRoute records the technician heading to the job site.
func (s *BookingService) MarkEnRoute(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	return s.technicianTransition(ctx, bookingID, actor, events.BookingEnRoute, func(bk *bookingDomain.Booking) error {
		return bk.MarkEnRoute(actor.ID)
	})
}

// MarkArrived records the technician at the job site.
func (s *BookingService) MarkArrived(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	return s.technicianTransition(ctx, bookingID, actor, events.BookingArrived, func(bk *bookingDomain.Booking) error {
		return bk.MarkArrived(actor.ID)
	})
}

// StartWork begins or resumes the job.
func (s *BookingService) StartWork(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	return s.technicianTransition(ctx, bookingID, actor, events.BookingInProgress, func(bk *bookingDomain.Booking) error {
		return bk.StartWork(actor.ID)
	})
}

// PauseJob suspends an in-progress job.
func (s *BookingService) PauseJob(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*BookingDTO, error) {
	return s.technicianTransition(ctx, bookingID, actor, events.BookingPaused, func(bk *bookingDomain.Booking) error {
		return bk.Pause(actor.ID, reason)
	})
}

// RequestCompletion records the technician's claim that the work is done.
func (s *BookingService) RequestCompletion(ctx context.Context, bookingID uuid.UUID, actor Actor, notes string) (*BookingDTO, error) {
	return s.technicianTransition(ctx, bookingID, actor, events.BookingCompletionRequested, func(bk *bookingDomain.Booking) error {
		return bk.RequestCompletion(actor.ID, notes)
	})
}

// ConfirmCompletion records the customer's (or support's) sign-off. On
// approval with an outstanding balance the booking moves to payment_pending
// and the remaining amount is reported; on rejection the booking returns to
// in_progress and, unless support itself rejected, a support ticket is
// raised automatically.
func (s *BookingService) ConfirmCompletion(ctx context.Context, bookingID uuid.UUID, actor Actor, approved bool, feedback string, issues []string) (*CompletionResultDTO, error) {
	var remaining int64
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := s.requireCustomerOrStaff(bk, actor); err != nil {
			return err
		}
		var err error
		remaining, err = bk.ConfirmCompletion(actor.ID, approved, feedback, issues)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !approved && !actor.Role.IsStaff() {
		s.raiseCompletionTicket(ctx, bk, actor, feedback)
	}

	eventType := events.BookingVerified
	if !approved {
		eventType = events.BookingInProgress
	} else if remaining > 0 {
		eventType = events.BookingPaymentPending
	}
	s.notifyBooking(ctx, eventType, bk, remaining, feedback)

	return &CompletionResultDTO{Booking: toBookingDTO(bk), RemainingBalance: remaining}, nil
}

// ConfirmBalancePayment settles the remaining balance and verifies the booking.
func (s *BookingService) ConfirmBalancePayment(ctx context.Context, bookingID uuid.UUID, actor Actor, transactionID uuid.UUID) (*BookingDTO, error) {
	tx, err := s.gateway.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != payment.StatusCompleted {
		return nil, domain.NewValidationError(fmt.Sprintf("transaction %s is not completed", transactionID))
	}

	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := s.requireCustomer(bk, actor); err != nil {
			return err
		}
		return bk.ConfirmBalancePayment(tx.ID, tx.Amount, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingVerified, bk, tx.Amount, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// ReleaseBookingFee pays the escrowed fee out to the technician after
// verification. A ledger transaction is written for the payout.
func (s *BookingService) ReleaseBookingFee(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := current.CanReleaseFee(); err != nil {
		return nil, err
	}
	technicianID := uuid.Nil
	if current.TechnicianID() != nil {
		technicianID = *current.TechnicianID()
	}

	// The ledger entry is written after the eligibility check but before
	// the booking update; a conflict on the update leaves an orphan payout
	// row for reconciliation rather than a released fee with no ledger
	// trace.
	tx := payment.NewTransaction(bookingID, technicianID, payment.TypeFeeRelease, current.Fee().Amount, current.Pricing().Currency)
	if err := s.gateway.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create release transaction: %w", err)
	}

	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.ReleaseFee(tx.ID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingFeeReleased, bk, bk.Fee().Amount, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// RefundBookingFee returns the escrowed fee to the customer of a cancelled,
// disputed or rejected booking. A refund ledger transaction is written.
func (s *BookingService) RefundBookingFee(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*BookingDTO, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := current.CanRefundFee(); err != nil {
		return nil, err
	}

	tx := payment.NewTransaction(bookingID, current.CustomerID(), payment.TypeFeeRefund, current.Fee().Amount, current.Pricing().Currency)
	if err := s.gateway.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create refund transaction: %w", err)
	}

	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.RefundFee(tx.ID, actor.ID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingFeeRefunded, bk, bk.Fee().Amount, reason)
	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking terminates the booking, computing the tiered cancellation fee.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := s.requireParty(bk, actor); err != nil {
			return err
		}
		return bk.Cancel(actor.ID, string(actor.Role), reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	var fee int64
	if bk.Cancellation() != nil {
		fee = bk.Cancellation().CancellationFee
	}
	s.notifyBooking(ctx, events.BookingCancelled, bk, fee, reason)
	result := toBookingDTO(bk)
	return &result, nil
}

// DisputeBooking flags completed or verified work for support review.
func (s *BookingService) DisputeBooking(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := s.requireParty(bk, actor); err != nil {
			return err
		}
		return bk.Dispute(actor.ID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, events.BookingDisputed, bk, 0, reason)
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a single booking. Only the booking's parties and
// staff may read it.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParty(bk, actor); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByNumber resolves a booking by its human-facing reference.
func (s *BookingService) GetBookingByNumber(ctx context.Context, bookingNumber string, actor Actor) (*BookingDTO, error) {
	bk, err := s.repo.FindByNumber(ctx, bookingNumber)
	if err != nil {
		return nil, err
	}
	if err := s.requireParty(bk, actor); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetCustomerBookings retrieves paginated bookings for a customer.
func (s *BookingService) GetCustomerBookings(ctx context.Context, customerID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetTechnicianBookings retrieves paginated bookings for a technician.
func (s *BookingService) GetTechnicianBookings(ctx context.Context, technicianID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByTechnicianID(ctx, technicianID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toDTOs(bookings), total, page, limit)
	return &result, nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// --- Internals ---

// transition runs the load-authorize-apply-persist sequence, retrying the
// whole sequence on optimistic-lock conflicts so a benign interleaving gets
// a second validation pass instead of surfacing a conflict to the client.
func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, apply func(bk *bookingDomain.Booking) error) (*bookingDomain.Booking, error) {
	var lastErr error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		bk, err := s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if err := apply(bk); err != nil {
			return nil, err
		}
		bk.IncrementVersion()

		err = s.repo.Update(ctx, bk)
		if err == nil {
			return bk, nil
		}
		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("optimistic lock conflict, retrying transition",
			zap.String("booking_id", bookingID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, lastErr
}

func (s *BookingService) technicianTransition(ctx context.Context, bookingID uuid.UUID, actor Actor, eventType string, apply func(bk *bookingDomain.Booking) error) (*BookingDTO, error) {
	bk, err := s.transition(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if err := requireAssignedTechnician(bk, actor); err != nil {
			return err
		}
		return apply(bk)
	})
	if err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, eventType, bk, 0, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// requireCustomer allows the owning customer or staff.
func (s *BookingService) requireCustomer(bk *bookingDomain.Booking, actor Actor) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role != auth.RoleCustomer || bk.CustomerID() != actor.ID {
		return domain.NewForbiddenError("only the booking's customer may perform this action")
	}
	return nil
}

// requireCustomerOrStaff is requireCustomer by another name, kept separate
// so call sites read like the transition table.
func (s *BookingService) requireCustomerOrStaff(bk *bookingDomain.Booking, actor Actor) error {
	return s.requireCustomer(bk, actor)
}

// requireParty allows the owning customer, the assigned technician or staff.
func (s *BookingService) requireParty(bk *bookingDomain.Booking, actor Actor) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role == auth.RoleCustomer && bk.CustomerID() == actor.ID {
		return nil
	}
	if actor.Role == auth.RoleTechnician && bk.TechnicianID() != nil && *bk.TechnicianID() == actor.ID {
		return nil
	}
	return domain.NewForbiddenError("not a party to this booking")
}

func requireAssignedTechnician(bk *bookingDomain.Booking, actor Actor) error {
	if actor.Role != auth.RoleTechnician {
		return domain.NewForbiddenError("only the assigned technician may perform this action")
	}
	if bk.TechnicianID() == nil || *bk.TechnicianID() != actor.ID {
		return domain.NewForbiddenError("booking is not assigned to this technician")
	}
	return nil
}

func requireStaff(actor Actor) error {
	if !actor.Role.IsStaff() {
		return domain.NewForbiddenError("admin or support role required")
	}
	return nil
}

func (s *BookingService) raiseCompletionTicket(ctx context.Context, bk *bookingDomain.Booking, actor Actor, feedback string) {
	ticket := support.NewTicket(
		bk.ID(),
		actor.ID,
		fmt.Sprintf("Completion rejected for booking %s", bk.BookingNumber()),
		feedback,
	)
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Error("failed to create support ticket",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
		return
	}

	evt := events.TicketCreatedEvent{
		TicketID:   ticket.ID,
		BookingID:  bk.ID(),
		RaisedBy:   actor.ID,
		Subject:    ticket.Subject,
		OccurredAt: s.now(),
	}
	if err := s.notifier.Notify(ctx, events.SupportTicketCreated, bk.ID().String(), evt); err != nil {
		s.logger.Error("failed to publish ticket event",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

// notifyBooking fires a lifecycle notification. Errors are logged and
// swallowed; a failed notification never fails or rolls back a transition.
func (s *BookingService) notifyBooking(ctx context.Context, eventType string, bk *bookingDomain.Booking, amount int64, reason string) {
	evt := events.BookingEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		TechnicianID:  bk.TechnicianID(),
		Status:        string(bk.Status()),
		Amount:        amount,
		Currency:      bk.Pricing().Currency,
		Reason:        reason,
		OccurredAt:    s.now(),
	}
	if err := s.notifier.Notify(ctx, eventType, bk.ID().String(), evt); err != nil {
		s.logger.Error("failed to publish booking event",
			zap.String("event_type", eventType),
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

func toDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
