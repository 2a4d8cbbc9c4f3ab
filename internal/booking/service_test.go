package booking

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careops/hospital-backend/internal/cache"
	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/repository"
)

// fakeAppointmentStore mirrors the repository's locking: Insert takes a
// per-doctor lock for the whole conflict-check-then-insert sequence, while
// each individual read or write only holds the short map lock. Without the
// doctor lock the check and the insert would be separately consistent but
// not atomic together.
type fakeAppointmentStore struct {
	mu          sync.Mutex
	doctorLocks map[uuid.UUID]*sync.Mutex
	appts       map[uuid.UUID]*models.Appointment
}

func newFakeAppointmentStore() *fakeAppointmentStore {
	return &fakeAppointmentStore{
		doctorLocks: make(map[uuid.UUID]*sync.Mutex),
		appts:       make(map[uuid.UUID]*models.Appointment),
	}
}

func (f *fakeAppointmentStore) doctorLock(doctorID uuid.UUID) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.doctorLocks[doctorID]
	if !ok {
		l = &sync.Mutex{}
		f.doctorLocks[doctorID] = l
	}
	return l
}

func (f *fakeAppointmentStore) hasOverlap(appt *models.Appointment) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.DoctorID == appt.DoctorID && a.Date.Equal(appt.Date) && a.Status == models.StatusScheduled {
			if a.StartMinute < appt.EndMinute() && appt.StartMinute < a.EndMinute() {
				return true
			}
		}
	}
	return false
}

func (f *fakeAppointmentStore) Insert(ctx context.Context, appt *models.Appointment) error {
	lock := f.doctorLock(appt.DoctorID)
	lock.Lock()
	defer lock.Unlock()

	if f.hasOverlap(appt) {
		return repository.ErrConflict
	}

	// the check and the insert are separate statements; only the doctor
	// lock keeps another Insert from landing in between
	runtime.Gosched()

	appt.ID = uuid.New()
	appt.AppointmentNumber = models.NewAppointmentNumber()
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeAppointmentStore) ByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointmentStore) ActiveForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Status == models.StatusScheduled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentStore) ListForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, a := range f.appts {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentStore) UpdateStatus(ctx context.Context, appt *models.Appointment, expect models.AppointmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.appts[appt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != expect {
		return repository.ErrStale
	}
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

type fakeAvailabilityStore struct {
	windows []models.DoctorAvailability
}

func (f *fakeAvailabilityStore) ActiveWindows(ctx context.Context, doctorID uuid.UUID, weekday int) ([]models.DoctorAvailability, error) {
	var out []models.DoctorAvailability
	for _, w := range f.windows {
		if w.DoctorID == doctorID && w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	doctors map[uuid.UUID]*models.User
}

func (f *fakeDirectory) ActiveDoctor(ctx context.Context, id uuid.UUID) (*models.User, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

type fixture struct {
	svc      *Service
	store    *fakeAppointmentStore
	doctorID uuid.UUID
	date     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doctorID := uuid.New()
	store := newFakeAppointmentStore()
	windows := &fakeAvailabilityStore{windows: []models.DoctorAvailability{
		{DoctorID: doctorID, StartMinute: 540, EndMinute: 1020, IsActive: true}, // 09:00-17:00
	}}
	dir := &fakeDirectory{doctors: map[uuid.UUID]*models.User{
		doctorID: {ID: doctorID, Role: models.RoleDoctor, IsActive: true},
	}}
	svc := NewService(store, windows, dir, nil, nil, time.Minute)
	return &fixture{
		svc:      svc,
		store:    store,
		doctorID: doctorID,
		date:     time.Now().UTC().AddDate(0, 0, 7),
	}
}

func (fx *fixture) request() Request {
	return Request{
		PatientID:       uuid.New(),
		DoctorID:        fx.doctorID,
		Date:            fx.date,
		StartMinute:     600,
		DurationMinutes: 30,
		Reason:          "checkup",
	}
}

func staffActor() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleReceptionist}
}

func TestBookSuccess(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, fx.request(), staffActor())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.Status != models.StatusScheduled {
		t.Errorf("status = %s, want scheduled", appt.Status)
	}
	if appt.AppointmentNumber == "" {
		t.Error("appointment number was not assigned")
	}
	if appt.EndMinute() != 630 {
		t.Errorf("end minute = %d, want 630", appt.EndMinute())
	}
}

func TestBookOutsideWindow(t *testing.T) {
	fx := newFixture(t)
	req := fx.request()
	req.StartMinute = 480 // 08:00, before the window opens

	_, err := fx.svc.Book(context.Background(), req, staffActor())
	var avErr *AvailabilityError
	if !errors.As(err, &avErr) {
		t.Fatalf("err = %v, want *AvailabilityError", err)
	}
}

func TestBookSpanningWindowEdge(t *testing.T) {
	fx := newFixture(t)
	req := fx.request()
	req.StartMinute = 1000 // ends at 17:10, past the window

	_, err := fx.svc.Book(context.Background(), req, staffActor())
	var avErr *AvailabilityError
	if !errors.As(err, &avErr) {
		t.Fatalf("err = %v, want *AvailabilityError", err)
	}
}

func TestBookConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Book(ctx, fx.request(), staffActor()); err != nil {
		t.Fatalf("first Book failed: %v", err)
	}

	req := fx.request()
	req.StartMinute = 615 // overlaps [600, 630)
	_, err := fx.svc.Book(ctx, req, staffActor())
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
}

func TestBookBackToBackAllowed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Book(ctx, fx.request(), staffActor()); err != nil {
		t.Fatalf("first Book failed: %v", err)
	}

	req := fx.request()
	req.StartMinute = 630 // starts exactly where the first one ends
	if _, err := fx.svc.Book(ctx, req, staffActor()); err != nil {
		t.Fatalf("back-to-back Book failed: %v", err)
	}
}

func TestBookAfterCancellationFreesSlot(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, fx.request(), staffActor())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := fx.svc.Transition(ctx, appt.ID, models.StatusCancelled, staffActor(), "patient request"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	if _, err := fx.svc.Book(ctx, fx.request(), staffActor()); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}
}

func TestBookValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing patient", func(r *Request) { r.PatientID = uuid.Nil }},
		{"missing doctor", func(r *Request) { r.DoctorID = uuid.Nil }},
		{"zero duration", func(r *Request) { r.DurationMinutes = 0 }},
		{"negative duration", func(r *Request) { r.DurationMinutes = -30 }},
		{"start before midnight", func(r *Request) { r.StartMinute = -10 }},
		{"start past midnight", func(r *Request) { r.StartMinute = 1440 }},
		{"extends past midnight", func(r *Request) { r.StartMinute = 1430; r.DurationMinutes = 30 }},
		{"missing reason", func(r *Request) { r.Reason = "" }},
		{"past date", func(r *Request) { r.Date = time.Now().UTC().AddDate(0, 0, -1) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := fx.request()
			c.mutate(&req)
			_, err := fx.svc.Book(ctx, req, staffActor())
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestBookUnknownDoctor(t *testing.T) {
	fx := newFixture(t)
	req := fx.request()
	req.DoctorID = uuid.New()

	_, err := fx.svc.Book(context.Background(), req, staffActor())
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestConcurrentBookingExactlyOneWins(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.Book(ctx, fx.request(), staffActor())
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var cErr *ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
}

func TestTransitionStateMachine(t *testing.T) {
	targets := []models.AppointmentStatus{
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusNoShow,
	}
	for _, first := range targets {
		for _, second := range targets {
			t.Run(string(first)+"_then_"+string(second), func(t *testing.T) {
				fx := newFixture(t)
				ctx := context.Background()
				admin := Actor{UserID: uuid.New(), Role: models.RoleAdmin}

				appt, err := fx.svc.Book(ctx, fx.request(), admin)
				if err != nil {
					t.Fatalf("Book failed: %v", err)
				}
				if _, err := fx.svc.Transition(ctx, appt.ID, first, admin, "done"); err != nil {
					t.Fatalf("scheduled -> %s failed: %v", first, err)
				}

				_, err = fx.svc.Transition(ctx, appt.ID, second, admin, "again")
				var trErr *InvalidTransitionError
				if !errors.As(err, &trErr) {
					t.Fatalf("%s -> %s: err = %v, want *InvalidTransitionError", first, second, err)
				}
			})
		}
	}
}

func TestTransitionSetsTimestamps(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: uuid.New(), Role: models.RoleAdmin}

	appt, err := fx.svc.Book(ctx, fx.request(), admin)
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	got, err := fx.svc.Transition(ctx, appt.ID, models.StatusCancelled, admin, "clinic closed")
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got.CancelledAt == nil {
		t.Error("CancelledAt was not set")
	}
	if got.CancellationReason != "clinic closed" {
		t.Errorf("CancellationReason = %q", got.CancellationReason)
	}
	if got.CancelledBy != string(models.RoleAdmin) {
		t.Errorf("CancelledBy = %q, want admin", got.CancelledBy)
	}
}

func TestTransitionActorRules(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	patientID := uuid.New()
	req := fx.request()
	req.PatientID = patientID

	book := func(t *testing.T) *models.Appointment {
		t.Helper()
		appt, err := fx.svc.Book(ctx, req, staffActor())
		if err != nil {
			t.Fatalf("Book failed: %v", err)
		}
		return appt
	}
	cleanup := func(t *testing.T, id uuid.UUID) {
		t.Helper()
		admin := Actor{UserID: uuid.New(), Role: models.RoleAdmin}
		if _, err := fx.svc.Transition(ctx, id, models.StatusCancelled, admin, "reset"); err != nil {
			t.Fatalf("cleanup failed: %v", err)
		}
	}

	t.Run("patient cannot complete", func(t *testing.T) {
		appt := book(t)
		defer cleanup(t, appt.ID)
		patient := Actor{UserID: patientID, Role: models.RolePatient}
		_, err := fx.svc.Transition(ctx, appt.ID, models.StatusCompleted, patient, "")
		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Fatalf("err = %v, want *PermissionError", err)
		}
	})

	t.Run("other doctor cannot complete", func(t *testing.T) {
		appt := book(t)
		defer cleanup(t, appt.ID)
		other := Actor{UserID: uuid.New(), Role: models.RoleDoctor}
		_, err := fx.svc.Transition(ctx, appt.ID, models.StatusCompleted, other, "")
		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Fatalf("err = %v, want *PermissionError", err)
		}
	})

	t.Run("owning doctor completes", func(t *testing.T) {
		appt := book(t)
		owner := Actor{UserID: fx.doctorID, Role: models.RoleDoctor}
		if _, err := fx.svc.Transition(ctx, appt.ID, models.StatusCompleted, owner, ""); err != nil {
			t.Fatalf("owning doctor could not complete: %v", err)
		}
	})

	t.Run("owning patient cancels", func(t *testing.T) {
		appt := book(t)
		patient := Actor{UserID: patientID, Role: models.RolePatient}
		if _, err := fx.svc.Transition(ctx, appt.ID, models.StatusCancelled, patient, "cannot make it"); err != nil {
			t.Fatalf("owning patient could not cancel: %v", err)
		}
	})

	t.Run("other patient cannot cancel", func(t *testing.T) {
		appt := book(t)
		defer cleanup(t, appt.ID)
		other := Actor{UserID: uuid.New(), Role: models.RolePatient}
		_, err := fx.svc.Transition(ctx, appt.ID, models.StatusCancelled, other, "nope")
		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Fatalf("err = %v, want *PermissionError", err)
		}
	})
}

func TestCheckAvailability(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Book(ctx, fx.request(), staffActor()); err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	free, err := fx.svc.CheckAvailability(ctx, fx.doctorID, fx.date)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	want := []Interval{{540, 600}, {630, 1020}}
	assertIntervals(t, free, want)

	booked := Interval{600, 630}
	for _, f := range free {
		if f.Overlaps(booked) {
			t.Errorf("free interval %v overlaps the booked slot", f)
		}
	}
}

func TestCheckAvailabilityCancelledSlotsAreFree(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, fx.request(), staffActor())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := fx.svc.Transition(ctx, appt.ID, models.StatusCancelled, staffActor(), "freed"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	free, err := fx.svc.CheckAvailability(ctx, fx.doctorID, fx.date)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	assertIntervals(t, free, []Interval{{540, 1020}})
}

func TestBookInvalidatesSlotCache(t *testing.T) {
	doctorID := uuid.New()
	store := newFakeAppointmentStore()
	windows := &fakeAvailabilityStore{windows: []models.DoctorAvailability{
		{DoctorID: doctorID, StartMinute: 540, EndMinute: 1020, IsActive: true},
	}}
	dir := &fakeDirectory{doctors: map[uuid.UUID]*models.User{
		doctorID: {ID: doctorID, Role: models.RoleDoctor, IsActive: true},
	}}
	slotCache := cache.NewMemoryCache()
	defer slotCache.Close()
	svc := NewService(store, windows, dir, slotCache, nil, time.Minute)

	ctx := context.Background()
	date := time.Now().UTC().AddDate(0, 0, 7)

	// prime the cache
	free, err := svc.CheckAvailability(ctx, doctorID, date)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	assertIntervals(t, free, []Interval{{540, 1020}})

	_, err = svc.Book(ctx, Request{
		PatientID:       uuid.New(),
		DoctorID:        doctorID,
		Date:            date,
		StartMinute:     600,
		DurationMinutes: 30,
		Reason:          "checkup",
	}, staffActor())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	// the booking must evict the cached day, not serve the stale entry
	free, err = svc.CheckAvailability(ctx, doctorID, date)
	if err != nil {
		t.Fatalf("CheckAvailability after booking failed: %v", err)
	}
	assertIntervals(t, free, []Interval{{540, 600}, {630, 1020}})
}

func TestGetOwnership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	patientID := uuid.New()
	req := fx.request()
	req.PatientID = patientID
	appt, err := fx.svc.Book(ctx, req, staffActor())
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	allowed := []Actor{
		{UserID: uuid.New(), Role: models.RoleAdmin},
		{UserID: uuid.New(), Role: models.RoleNurse},
		{UserID: fx.doctorID, Role: models.RoleDoctor},
		{UserID: patientID, Role: models.RolePatient},
	}
	for _, actor := range allowed {
		if _, err := fx.svc.Get(ctx, appt.ID, actor); err != nil {
			t.Errorf("Get as %s failed: %v", actor.Role, err)
		}
	}

	denied := []Actor{
		{UserID: uuid.New(), Role: models.RoleDoctor},
		{UserID: uuid.New(), Role: models.RolePatient},
	}
	for _, actor := range denied {
		_, err := fx.svc.Get(ctx, appt.ID, actor)
		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Errorf("Get as unrelated %s: err = %v, want *PermissionError", actor.Role, err)
		}
	}
}
