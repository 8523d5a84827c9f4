package bookings

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/catalog"
	"github.com/angelmondragon/petshop-storefront/internal/credits"
	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu        sync.Mutex
	bookings  map[string]Booking
	createErr error
	fetchErr  error
	creates   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{bookings: map[string]Booking{}}
}

func (f *fakeRemote) FetchBookingsForOwner(_ context.Context, ownerID string) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []Booking
	for _, b := range f.bookings {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) FetchAllBookings(_ context.Context) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRemote) FetchBooking(_ context.Context, id string) (Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return Booking{}, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return b, nil
}

func (f *fakeRemote) CreateBookingRemote(_ context.Context, b Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeRemote) CancelBookingRemote(_ context.Context, id string) error {
	return f.SetBookingStatusRemote(context.Background(), id, enums.BookingStatusCancelled)
}

func (f *fakeRemote) SetBookingPaymentStatusRemote(_ context.Context, id string, status enums.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bookings[id]
	b.PaymentStatus = status
	f.bookings[id] = b
	return nil
}

func (f *fakeRemote) SetBookingStatusRemote(_ context.Context, id string, status enums.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bookings[id]
	b.Status = status
	f.bookings[id] = b
	return nil
}

func (f *fakeRemote) paymentStatus(id string) enums.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[id].PaymentStatus
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func (p *recordingPublisher) storageEvents() []broadcast.StorageChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcast.StorageChanged
	for _, e := range p.events {
		if sc, ok := e.(broadcast.StorageChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

func (p *recordingPublisher) has(want broadcast.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if reflect.DeepEqual(e, want) {
			return true
		}
	}
	return false
}

type fixture struct {
	svc    *Service
	remote *fakeRemote
	ledger *credits.Ledger
	store  *kvs.MemoryStore
	pub    *recordingPublisher
	owner  users.Principal
	ids    int
}

func newFixture(t *testing.T, balance int64, refund bool) *fixture {
	t.Helper()
	store := kvs.NewMemoryStore()
	principals := users.NewRepository(store, nil)
	owner := users.Principal{ID: "user-1", Name: "Ana", Role: enums.RoleUser, Credits: balance}
	if err := principals.Save(context.Background(), owner); err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	pub := &recordingPublisher{}
	ledger, err := credits.NewLedger(credits.LedgerParams{
		Store:      store,
		Principals: principals,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	remote := newFakeRemote()
	svc, err := NewService(ServiceParams{
		Remote:                remote,
		Credits:               ledger,
		Services:              cat,
		Store:                 store,
		Publisher:             pub,
		RefundCreditsOnCancel: refund,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	f := &fixture{svc: svc, remote: remote, ledger: ledger, store: store, pub: pub, owner: owner}
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() string {
		f.ids++
		return "bk-" + string(rune('0'+f.ids))
	}
	return f
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func validInput(method enums.PaymentMethod) CreateInput {
	return CreateInput{
		ServiceID:     "svc-bath",
		Date:          "2026-03-12",
		Time:          "10:30",
		PetName:       "Luna",
		PetSpecies:    "dog",
		PetAge:        3,
		PaymentMethod: method,
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !pkgerrors.Is(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateWithCreditsDeductsAndMarksPaid(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)

	b, err := f.svc.Create(context.Background(), f.owner, validInput(enums.PaymentMethodLuckCoins))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.PaymentStatus != enums.PaymentStatusPaid || b.Status != enums.BookingStatusPending {
		t.Fatalf("unexpected booking state: %+v", b)
	}
	if got := f.balance(t); got != 75 {
		t.Fatalf("expected balance 75 after 25 credit bath, got %d", got)
	}
	if b.OwnerID != f.owner.ID || b.ServiceName == "" {
		t.Fatalf("booking not attributed: %+v", b)
	}
}

func TestCreateWithCardStaysPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)

	b, err := f.svc.Create(context.Background(), f.owner, validInput(enums.PaymentMethodCreditCard))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", b.PaymentStatus)
	}
	if got := f.balance(t); got != 100 {
		t.Fatalf("card booking touched credits: %d", got)
	}
}

func TestCreateWithInsufficientCreditsLeavesBalance(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 40, false)
	f.svc.services = stubServices{svc: catalog.Service{ID: "svc-x", Name: "X", Price: decimal.RequireFromString("41.75")}}

	in := validInput(enums.PaymentMethodLuckCoins)
	in.ServiceID = "svc-x"
	_, err := f.svc.Create(context.Background(), f.owner, in)
	assertCode(t, err, pkgerrors.CodeInsufficientBalance)
	if got := f.balance(t); got != 40 {
		t.Fatalf("balance changed to %d", got)
	}
	if f.remote.creates != 0 {
		t.Fatalf("remote create should not be attempted")
	}
}

func TestCreateReturnsCreditsWhenRemoteFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	f.remote.createErr = errors.New("unavailable")

	_, err := f.svc.Create(context.Background(), f.owner, validInput(enums.PaymentMethodLuckCoins))
	assertCode(t, err, pkgerrors.CodeDependency)
	if got := f.balance(t); got != 100 {
		t.Fatalf("expected credits returned, balance %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)

	cases := map[string]func(*CreateInput){
		"past date":    func(in *CreateInput) { in.Date = "2026-03-09" },
		"bad date":     func(in *CreateInput) { in.Date = "12/03/2026" },
		"bad time":     func(in *CreateInput) { in.Time = "25:99" },
		"no pet":       func(in *CreateInput) { in.PetName = "  " },
		"old pet":      func(in *CreateInput) { in.PetAge = 41 },
		"bad method":   func(in *CreateInput) { in.PaymentMethod = "barter" },
		"wrong expert": func(in *CreateInput) { in.ServiceID = "svc-grooming"; in.Professional = "Nobody" },
	}
	for name, mutate := range cases {
		in := validInput(enums.PaymentMethodCash)
		mutate(&in)
		_, err := f.svc.Create(context.Background(), f.owner, in)
		if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	in := validInput(enums.PaymentMethodCash)
	in.ServiceID = "svc-unknown"
	_, err := f.svc.Create(context.Background(), f.owner, in)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateRejectsGuestsAndAnonymous(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)

	_, err := f.svc.Create(context.Background(), users.Principal{}, validInput(enums.PaymentMethodCash))
	assertCode(t, err, pkgerrors.CodeUnauthorized)

	guest := users.Principal{ID: "guest-1", Guest: true}
	_, err = f.svc.Create(context.Background(), guest, validInput(enums.PaymentMethodCash))
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestCancelRefundsOnlyWhenConfigured(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name   string
		refund bool
		want   int64
	}{
		{name: "refund disabled", refund: false, want: 75},
		{name: "refund enabled", refund: true, want: 100},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, 100, tc.refund)
			b, err := f.svc.Create(context.Background(), f.owner, validInput(enums.PaymentMethodLuckCoins))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			cancelled, err := f.svc.Cancel(context.Background(), f.owner, b.ID)
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if cancelled.Status != enums.BookingStatusCancelled {
				t.Fatalf("expected cancelled, got %s", cancelled.Status)
			}
			if got := f.balance(t); got != tc.want {
				t.Fatalf("expected balance %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCancelErrorsAreDistinct(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, true)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, f.owner, "missing")
	assertCode(t, err, pkgerrors.CodeNotFound)

	b, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stranger := users.Principal{ID: "user-2", Role: enums.RoleUser}
	_, err = f.svc.Cancel(ctx, stranger, b.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	if _, err := f.svc.Cancel(ctx, f.owner, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.svc.Cancel(ctx, f.owner, b.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelConfirmedBookingIsStateConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()
	admin := users.Principal{ID: "admin-1", Role: enums.RoleAdmin}

	b, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, admin, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err = f.svc.Cancel(ctx, f.owner, b.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestMarkPaid(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodInstantTransfer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	paid, err := f.svc.MarkPaid(ctx, f.owner, b.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", paid.PaymentStatus)
	}
	again, err := f.svc.MarkPaid(ctx, f.owner, b.ID)
	if err != nil || again.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("repeat mark paid should be a no-op: %+v %v", again, err)
	}

	credit, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodLuckCoins))
	if err != nil {
		t.Fatalf("create credits booking: %v", err)
	}
	_, err = f.svc.MarkPaid(ctx, f.owner, credit.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	cash, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create cash booking: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, f.owner, cash.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.svc.MarkPaid(ctx, f.owner, cash.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestMarkPaidAfterConfirm(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()
	admin := users.Principal{ID: "admin-1", Role: enums.RoleAdmin}

	b, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, admin, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	paid, err := f.svc.MarkPaid(ctx, f.owner, b.ID)
	if err != nil {
		t.Fatalf("confirmed unpaid booking must accept payment: %v", err)
	}
	if paid.PaymentStatus != enums.PaymentStatusPaid || paid.Status != enums.BookingStatusConfirmed {
		t.Fatalf("expected confirmed and paid, got %s/%s", paid.Status, paid.PaymentStatus)
	}
	if got := f.remote.paymentStatus(b.ID); got != enums.PaymentStatusPaid {
		t.Fatalf("remote payment status not updated, got %s", got)
	}

	card, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCreditCard))
	if err != nil {
		t.Fatalf("create card booking: %v", err)
	}
	if _, err := f.svc.Complete(ctx, admin, card.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.MarkPaid(ctx, admin, card.ID); err != nil {
		t.Fatalf("admin may record payment of a completed booking: %v", err)
	}
}

func TestCreatePublishesOneStorageEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()

	if _, err := f.svc.RequestBooking(ctx, validInput(enums.PaymentMethodCash).ServiceID); err != nil {
		t.Fatalf("request booking: %v", err)
	}
	if _, err := f.svc.ListByOwner(ctx, f.owner, f.owner.ID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	f.pub.reset()

	if _, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash)); err != nil {
		t.Fatalf("create: %v", err)
	}
	storage := f.pub.storageEvents()
	if len(storage) != 1 {
		t.Fatalf("expected one storage-changed event, got %#v", storage)
	}
	if !storage[0].Touches(keys.BookingDraft) || !storage[0].Touches(keys.BookingsCache) {
		t.Fatalf("event must cover draft and cache, got %#v", storage[0])
	}
}

func TestAdminTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()
	admin := users.Principal{ID: "admin-1", Role: enums.RoleAdmin}

	b, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = f.svc.Confirm(ctx, f.owner, b.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	confirmed, err := f.svc.Confirm(ctx, admin, b.ID)
	if err != nil || confirmed.Status != enums.BookingStatusConfirmed {
		t.Fatalf("confirm: %+v %v", confirmed, err)
	}
	completed, err := f.svc.Complete(ctx, admin, b.ID)
	if err != nil || completed.Status != enums.BookingStatusCompleted {
		t.Fatalf("complete: %+v %v", completed, err)
	}
	_, err = f.svc.Confirm(ctx, admin, b.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListByOwnerNewestFirstAndCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3"} {
		f.remote.bookings[id] = Booking{
			ID:        id,
			OwnerID:   f.owner.ID,
			Status:    enums.BookingStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	f.remote.bookings["other"] = Booking{ID: "other", OwnerID: "user-2", CreatedAt: base}

	list, err := f.svc.ListByOwner(ctx, f.owner, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, b := range list {
		got = append(got, b.ID)
	}
	if len(got) != 3 || got[0] != "t3" || got[1] != "t2" || got[2] != "t1" {
		t.Fatalf("expected t3,t2,t1 got %v", got)
	}

	cached, ok := f.svc.Cached(ctx, f.owner)
	if !ok || len(cached) != 3 || cached[0].ID != "t3" {
		t.Fatalf("expected cached list, got %v %v", cached, ok)
	}
	if !f.pub.has(broadcast.StorageChanged{Key: keys.BookingsCache}) {
		t.Fatalf("expected bookings cache change event")
	}
	if _, ok := f.svc.Cached(ctx, users.Principal{ID: "user-2"}); ok {
		t.Fatalf("cache must not leak to another owner")
	}

	_, err = f.svc.ListByOwner(ctx, f.owner, "user-2")
	assertCode(t, err, pkgerrors.CodeForbidden)

	admin := users.Principal{ID: "admin-1", Role: enums.RoleAdmin}
	others, err := f.svc.ListByOwner(ctx, admin, "user-2")
	if err != nil || len(others) != 1 {
		t.Fatalf("admin list: %v %v", others, err)
	}
}

func TestListByOwnerRemoteFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	f.remote.fetchErr = errors.New("offline")

	_, err := f.svc.ListByOwner(context.Background(), f.owner, "")
	assertCode(t, err, pkgerrors.CodeDependency)
}

func TestListAllRequiresAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()

	_, err := f.svc.ListAll(ctx, f.owner)
	assertCode(t, err, pkgerrors.CodeForbidden)

	f.remote.bookings["a"] = Booking{ID: "a", OwnerID: "x", CreatedAt: fixedNow.Add(-time.Hour)}
	f.remote.bookings["b"] = Booking{ID: "b", OwnerID: "y", CreatedAt: fixedNow}
	list, err := f.svc.ListAll(ctx, users.Principal{ID: "admin-1", Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" {
		t.Fatalf("unexpected order: %v", list)
	}
}

func TestRequestBookingStoresDraft(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, false)
	ctx := context.Background()

	if _, err := f.svc.RequestBooking(ctx, "svc-grooming"); err != nil {
		t.Fatalf("request: %v", err)
	}
	d, ok := f.svc.CurrentDraft(ctx)
	if !ok || d.ServiceID != "svc-grooming" {
		t.Fatalf("unexpected draft %+v %v", d, ok)
	}
	if !f.pub.has(broadcast.OpenBookingPanel{ServiceID: "svc-grooming"}) {
		t.Fatalf("expected open booking panel event")
	}

	_, err := f.svc.RequestBooking(ctx, "svc-nope")
	assertCode(t, err, pkgerrors.CodeNotFound)

	if _, err := f.svc.Create(ctx, f.owner, validInput(enums.PaymentMethodCash)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := f.svc.CurrentDraft(ctx); ok {
		t.Fatalf("draft should be cleared after booking")
	}
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewService(ServiceParams{}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type stubServices struct {
	svc catalog.Service
}

func (s stubServices) Service(id string) (catalog.Service, bool) {
	if id != s.svc.ID {
		return catalog.Service{}, false
	}
	return s.svc, true
}
