package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bookingDomain "github.com/dumu-waks/service-booking/internal/domain/booking"
	"github.com/dumu-waks/service-booking/internal/domain/payment"
	"github.com/dumu-waks/service-booking/internal/domain/support"
	"github.com/dumu-waks/service-booking/internal/events"
	"github.com/dumu-waks/service-booking/pkg/auth"
	"github.com/dumu-waks/service-booking/pkg/domain"
)

// --- Fakes ---

type fakeBookingRepo struct {
	mu              sync.Mutex
	bookings        map[uuid.UUID]bookingDomain.Snapshot
	conflictUpdates int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]bookingDomain.Snapshot)}
}

func (r *fakeBookingRepo) seed(bk *bookingDomain.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[bk.ID()] = bk.Snapshot()
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bookingDomain.Reconstruct(s), nil
}

func (r *fakeBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.bookings {
		if s.BookingNumber == number {
			return bookingDomain.Reconstruct(s), nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

func (r *fakeBookingRepo) FindByCustomerID(_ context.Context, customerID uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, s := range r.bookings {
		if s.CustomerID == customerID {
			out = append(out, bookingDomain.Reconstruct(s))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByTechnicianID(_ context.Context, technicianID uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, s := range r.bookings {
		if s.TechnicianID != nil && *s.TechnicianID == technicianID {
			out = append(out, bookingDomain.Reconstruct(s))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, s := range r.bookings {
		out = append(out, bookingDomain.Reconstruct(s))
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, s := range r.bookings {
		counts[string(s.Status)]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[bk.ID()] = bk.Snapshot()
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictUpdates > 0 {
		r.conflictUpdates--
		return domain.NewConflictError("booking was modified by another transaction")
	}
	stored, ok := r.bookings[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if stored.Version != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[bk.ID()] = bk.Snapshot()
	return nil
}

type fakeGateway struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*payment.Transaction
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{transactions: make(map[uuid.UUID]*payment.Transaction)}
}

func (g *fakeGateway) seed(tx *payment.Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions[tx.ID] = tx
}

func (g *fakeGateway) FindTransaction(_ context.Context, id uuid.UUID) (*payment.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx, ok := g.transactions[id]
	if !ok {
		return nil, domain.NewNotFoundError("Transaction", id.String())
	}
	return tx, nil
}

func (g *fakeGateway) CreateTransaction(_ context.Context, tx *payment.Transaction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions[tx.ID] = tx
	return nil
}

func (g *fakeGateway) countByType(txType payment.TransactionType) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, tx := range g.transactions {
		if tx.Type == txType {
			n++
		}
	}
	return n
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets []*support.Ticket
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *support.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, ticket)
	return nil
}

func (r *fakeTicketRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*support.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*support.Ticket
	for _, tk := range r.tickets {
		if tk.BookingID == bookingID {
			out = append(out, tk)
		}
	}
	return out, nil
}

type recordedEvent struct {
	Type string
	Key  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, eventType, key string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, recordedEvent{Type: eventType, Key: key})
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// --- Harness ---

type serviceFixture struct {
	service  *BookingService
	repo     *fakeBookingRepo
	gateway  *fakeGateway
	tickets  *fakeTicketRepo
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newFakeBookingRepo()
	gateway := newFakeGateway()
	tickets := &fakeTicketRepo{}
	notifier := &recordingNotifier{}
	svc := NewBookingService(repo, gateway, tickets, notifier, zap.NewNop())
	return &serviceFixture{service: svc, repo: repo, gateway: gateway, tickets: tickets, notifier: notifier}
}

func testPricing() bookingDomain.Pricing {
	return bookingDomain.Pricing{
		BasePrice:     500,
		ServiceCharge: 200,
		PlatformFee:   100,
		Tax:           200,
		TotalAmount:   1000,
		Currency:      "KES",
	}
}

// seedBooking creates a pending booking for customerID with a preferred
// technician, walks it into the requested status, and stores it.
func seedBooking(t *testing.T, f *serviceFixture, customerID, technicianID uuid.UUID, status bookingDomain.BookingStatus) *bookingDomain.Booking {
	t.Helper()
	bk, err := bookingDomain.NewBooking(
		customerID,
		&technicianID,
		"electrical",
		"rewire garage",
		testPricing(),
		time.Now().UTC().Add(72*time.Hour),
		"",
	)
	require.NoError(t, err)

	steps := []func() error{
		func() error { return bk.ConfirmFee(uuid.New(), bk.Fee().Amount, customerID) },
		func() error { return bk.Accept(technicianID) },
		func() error { return bk.MarkEnRoute(technicianID) },
		func() error { return bk.MarkArrived(technicianID) },
		func() error { return bk.StartWork(technicianID) },
		func() error { return bk.RequestCompletion(technicianID, "done") },
	}
	for _, step := range steps {
		if bk.Status() == status {
			break
		}
		require.NoError(t, step())
	}
	require.Equal(t, status, bk.Status())

	f.repo.seed(bk)
	return bk
}

func completedTx(bookingID, payerID uuid.UUID, txType payment.TransactionType, amount int64) *payment.Transaction {
	now := time.Now().UTC()
	return &payment.Transaction{
		ID:          uuid.New(),
		BookingID:   bookingID,
		UserID:      payerID,
		Type:        txType,
		Amount:      amount,
		Currency:    "KES",
		Status:      payment.StatusCompleted,
		Provider:    "mpesa",
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

// --- Tests ---

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()

	dto, err := f.service.CreateBooking(context.Background(), customerID, CreateBookingRequest{
		ServiceType: "plumbing",
		Description: "leaking tap",
		BasePrice:   500,
		ServiceDate: time.Now().UTC().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusPending), dto.Status)
	assert.Equal(t, customerID, dto.CustomerID)
	assert.NotEmpty(t, dto.BookingNumber)

	stored, err := f.repo.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, stored.Status())
}

func TestConfirmBookingFee(t *testing.T) {
	t.Run("escrows the fee and notifies", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusPending)

		tx := completedTx(bk.ID(), customerID, payment.TypeBookingFee, bk.Fee().Amount)
		f.gateway.seed(tx)

		dto, err := f.service.ConfirmBookingFee(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, tx.ID)
		require.NoError(t, err)

		assert.Equal(t, string(bookingDomain.StatusAssigned), dto.Status)
		assert.Equal(t, []string{events.BookingFeeConfirmed}, f.notifier.types())
	})

	t.Run("rejects a transaction that is not completed", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusPending)

		tx := completedTx(bk.ID(), customerID, payment.TypeBookingFee, bk.Fee().Amount)
		tx.Status = payment.StatusPending
		f.gateway.seed(tx)

		_, err := f.service.ConfirmBookingFee(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, tx.ID)
		assert.ErrorAs(t, err, new(*domain.ValidationError))
		assert.Empty(t, f.notifier.types())
	})

	t.Run("rejects a mismatched amount", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusPending)

		tx := completedTx(bk.ID(), customerID, payment.TypeBookingFee, bk.Fee().Amount-1)
		f.gateway.seed(tx)

		_, err := f.service.ConfirmBookingFee(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, tx.ID)
		assert.ErrorAs(t, err, new(*domain.AmountMismatchError))
	})

	t.Run("another customer is forbidden", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusPending)

		tx := completedTx(bk.ID(), customerID, payment.TypeBookingFee, bk.Fee().Amount)
		f.gateway.seed(tx)

		_, err := f.service.ConfirmBookingFee(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleCustomer}, tx.ID)
		assert.ErrorAs(t, err, new(*domain.ForbiddenError))
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		tx := completedTx(uuid.New(), uuid.New(), payment.TypeBookingFee, 200)
		f.gateway.seed(tx)

		_, err := f.service.ConfirmBookingFee(context.Background(), uuid.New(), Actor{ID: uuid.New(), Role: auth.RoleCustomer}, tx.ID)
		assert.ErrorAs(t, err, new(*domain.NotFoundError))
	})
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker unreachable")
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAssigned)

	dto, err := f.service.AcceptBooking(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician})
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusAccepted), dto.Status)

	stored, err := f.repo.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusAccepted, stored.Status())
}

func TestTransitionRetriesOnConflict(t *testing.T) {
	t.Run("recovers from transient conflicts", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAssigned)
		f.repo.conflictUpdates = 2

		dto, err := f.service.AcceptBooking(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician})
		require.NoError(t, err)
		assert.Equal(t, string(bookingDomain.StatusAccepted), dto.Status)
	})

	t.Run("gives up after exhausting attempts", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAssigned)
		f.repo.conflictUpdates = 3

		_, err := f.service.AcceptBooking(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician})
		assert.ErrorAs(t, err, new(*domain.ConflictError))
	})
}

func TestTechnicianOperationsRequireAssignedTechnician(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAccepted)

	_, err := f.service.MarkEnRoute(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleTechnician})
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	_, err = f.service.MarkEnRoute(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer})
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	dto, err := f.service.MarkEnRoute(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician})
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusEnRoute), dto.Status)
}

func TestAssignTechnician(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()

	bk, err := bookingDomain.NewBooking(customerID, nil, "electrical", "rewire garage", testPricing(), time.Now().UTC().Add(72*time.Hour), "")
	require.NoError(t, err)
	require.NoError(t, bk.ConfirmFee(uuid.New(), bk.Fee().Amount, customerID))
	require.Equal(t, bookingDomain.StatusMatching, bk.Status())
	f.repo.seed(bk)

	technicianID := uuid.New()

	// Assignment is staff only.
	_, err = f.service.AssignTechnician(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, technicianID)
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	_, err = f.service.AssignTechnician(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician}, technicianID)
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	dto, err := f.service.AssignTechnician(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleSupport}, technicianID)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusAssigned), dto.Status)
	require.NotNil(t, dto.TechnicianID)
	assert.Equal(t, technicianID, *dto.TechnicianID)
	assert.Equal(t, []string{events.BookingTechnicianAssigned}, f.notifier.types())
}

func TestSubmitAndRespondToCounterOffer(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAssigned)

	dto, err := f.service.SubmitCounterOffer(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician}, 800, "extra materials")
	require.NoError(t, err)
	require.NotNil(t, dto.CounterOffer)
	assert.Equal(t, int64(800), dto.CounterOffer.ProposedAmount)

	dto, err = f.service.RespondToCounterOffer(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, true, "ok")
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusAccepted), dto.Status)
	assert.Equal(t, int64(800), dto.Pricing.TotalAmount)
	assert.Equal(t, int64(160), dto.BookingFee.Amount)

	assert.Equal(t, []string{events.BookingCounterOfferSubmitted, events.BookingCounterOfferResponded}, f.notifier.types())
}

func TestConfirmCompletion(t *testing.T) {
	t.Run("approval reports the remaining balance", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusCompleted)

		result, err := f.service.ConfirmCompletion(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, true, "good job", nil)
		require.NoError(t, err)

		assert.Equal(t, int64(800), result.RemainingBalance)
		assert.Equal(t, string(bookingDomain.StatusPaymentPending), result.Booking.Status)
		assert.Empty(t, f.tickets.tickets)
		assert.Equal(t, []string{events.BookingPaymentPending}, f.notifier.types())
	})

	t.Run("customer rejection raises a support ticket", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusCompleted)

		result, err := f.service.ConfirmCompletion(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, false, "socket still dead", []string{"no power"})
		require.NoError(t, err)

		assert.Equal(t, string(bookingDomain.StatusInProgress), result.Booking.Status)
		require.Len(t, f.tickets.tickets, 1)
		assert.Equal(t, bk.ID(), f.tickets.tickets[0].BookingID)
		assert.Equal(t, customerID, f.tickets.tickets[0].RaisedBy)
		assert.Contains(t, f.notifier.types(), events.SupportTicketCreated)
	})

	t.Run("support rejection does not raise a ticket", func(t *testing.T) {
		f := newFixture(t)
		customerID, technicianID := uuid.New(), uuid.New()
		bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusCompleted)

		_, err := f.service.ConfirmCompletion(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleSupport}, false, "escalation review", nil)
		require.NoError(t, err)
		assert.Empty(t, f.tickets.tickets)
	})
}

func TestBalancePaymentAndFeeRelease(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusCompleted)

	_, err := f.service.ConfirmCompletion(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, true, "", nil)
	require.NoError(t, err)

	balanceTx := completedTx(bk.ID(), customerID, payment.TypeBalance, 800)
	f.gateway.seed(balanceTx)

	dto, err := f.service.ConfirmBalancePayment(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, balanceTx.ID)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusVerified), dto.Status)

	// Release is staff only.
	_, err = f.service.ReleaseBookingFee(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician})
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	dto, err = f.service.ReleaseBookingFee(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.FeeStatusReleased), string(dto.BookingFee.Status))

	// The payout was written to the ledger.
	var payout *payment.Transaction
	for _, tx := range f.gateway.transactions {
		if tx.Type == payment.TypeFeeRelease {
			payout = tx
		}
	}
	require.NotNil(t, payout)
	assert.Equal(t, int64(200), payout.Amount)
	assert.Equal(t, technicianID, payout.UserID)
}

func TestIneligibleFeePayoutWritesNoLedgerRow(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAssigned)
	staff := Actor{ID: uuid.New(), Role: auth.RoleAdmin}

	// Release on an unverified booking is refused before any ledger write.
	_, err := f.service.ReleaseBookingFee(context.Background(), bk.ID(), staff)
	assert.ErrorAs(t, err, new(*domain.InvalidStateError))
	assert.Zero(t, f.gateway.countByType(payment.TypeFeeRelease))

	// Refund on a booking that has not fallen through likewise.
	_, err = f.service.RefundBookingFee(context.Background(), bk.ID(), staff, "oops")
	assert.ErrorAs(t, err, new(*domain.InvalidStateError))
	assert.Zero(t, f.gateway.countByType(payment.TypeFeeRefund))
}

func TestDoubleFeeReleaseWritesOnePayout(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusCompleted)

	_, err := f.service.ConfirmCompletion(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, true, "", nil)
	require.NoError(t, err)
	balanceTx := completedTx(bk.ID(), customerID, payment.TypeBalance, 800)
	f.gateway.seed(balanceTx)
	_, err = f.service.ConfirmBalancePayment(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, balanceTx.ID)
	require.NoError(t, err)

	staff := Actor{ID: uuid.New(), Role: auth.RoleAdmin}
	_, err = f.service.ReleaseBookingFee(context.Background(), bk.ID(), staff)
	require.NoError(t, err)

	_, err = f.service.ReleaseBookingFee(context.Background(), bk.ID(), staff)
	assert.ErrorAs(t, err, new(*domain.InvalidStateError))
	assert.Equal(t, 1, f.gateway.countByType(payment.TypeFeeRelease))
}

func TestCancelAndRefund(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAccepted)

	// A stranger cannot cancel.
	_, err := f.service.CancelBooking(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleCustomer}, "nope")
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	dto, err := f.service.CancelBooking(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, "found someone cheaper")
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusCancelled), dto.Status)
	// Service is 72 hours out, so no cancellation fee applies.
	require.NotNil(t, dto.Cancellation)
	assert.Zero(t, dto.Cancellation.CancellationFee)

	dto, err = f.service.RefundBookingFee(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleSupport}, "booking cancelled")
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.FeeStatusRefunded), string(dto.BookingFee.Status))

	var refund *payment.Transaction
	for _, tx := range f.gateway.transactions {
		if tx.Type == payment.TypeFeeRefund {
			refund = tx
		}
	}
	require.NotNil(t, refund)
	assert.Equal(t, customerID, refund.UserID)
	assert.Equal(t, int64(200), refund.Amount)
}

func TestDisputeBooking(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusCompleted)

	dto, err := f.service.DisputeBooking(context.Background(), bk.ID(), Actor{ID: customerID, Role: auth.RoleCustomer}, "work incomplete")
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusDisputed), dto.Status)
	assert.Equal(t, []string{events.BookingDisputed}, f.notifier.types())
}

func TestGetBookingAuthorization(t *testing.T) {
	f := newFixture(t)
	customerID, technicianID := uuid.New(), uuid.New()
	bk := seedBooking(t, f, customerID, technicianID, bookingDomain.StatusAccepted)

	_, err := f.service.GetBooking(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleCustomer})
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))

	dto, err := f.service.GetBooking(context.Background(), bk.ID(), Actor{ID: technicianID, Role: auth.RoleTechnician})
	require.NoError(t, err)
	assert.Equal(t, bk.ID(), dto.ID)

	_, err = f.service.GetBooking(context.Background(), bk.ID(), Actor{ID: uuid.New(), Role: auth.RoleAdmin})
	require.NoError(t, err)

	byNumber, err := f.service.GetBookingByNumber(context.Background(), bk.BookingNumber(), Actor{ID: customerID, Role: auth.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, bk.ID(), byNumber.ID)

	_, err = f.service.GetBookingByNumber(context.Background(), bk.BookingNumber(), Actor{ID: uuid.New(), Role: auth.RoleTechnician})
	assert.ErrorAs(t, err, new(*domain.ForbiddenError))
}

func TestGetBookingStats(t *testing.T) {
	f := newFixture(t)
	seedBooking(t, f, uuid.New(), uuid.New(), bookingDomain.StatusPending)
	seedBooking(t, f, uuid.New(), uuid.New(), bookingDomain.StatusAssigned)
	seedBooking(t, f, uuid.New(), uuid.New(), bookingDomain.StatusAssigned)

	stats, err := f.service.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalBookings)
	assert.Equal(t, int64(2), stats.ByStatus[string(bookingDomain.StatusAssigned)])
	assert.Equal(t, int64(1), stats.ByStatus[string(bookingDomain.StatusPending)])
}
