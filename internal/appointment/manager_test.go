package appointment

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// -- Mock repository --

type mockApptRepo struct {
	appts    []Appointment
	outcomes map[string]Outcome
	creates  int
	// honorCtx makes status writes fail once ctx is done.
	honorCtx bool
}

func newMockApptRepo(appts ...Appointment) *mockApptRepo {
	return &mockApptRepo{appts: appts, outcomes: map[string]Outcome{}}
}

func (m *mockApptRepo) ListAppointments(_ context.Context) ([]Appointment, error) {
	return append([]Appointment(nil), m.appts...), nil
}

func (m *mockApptRepo) ListAppointmentsByDoctor(_ context.Context, doctorID string) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApptRepo) ListAppointmentsByPatient(_ context.Context, patientID string) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApptRepo) GetAppointmentByID(_ context.Context, id string) (*Appointment, error) {
	for _, a := range m.appts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("get appointment", "appointment %s not found", id)
}

func (m *mockApptRepo) CreateAppointment(_ context.Context, a Appointment) error {
	m.creates++
	m.appts = append(m.appts, a)
	return nil
}

func (m *mockApptRepo) UpdateAppointmentStatus(ctx context.Context, id string, from, to Status) (*Appointment, error) {
	if m.honorCtx {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Store("update", err)
		}
	}
	for i, a := range m.appts {
		if a.ID != id {
			continue
		}
		if a.Status != from {
			return nil, apperr.InvalidTransition("update", "appointment %s is %s", id, a.Status)
		}
		m.appts[i].Status = to
		out := m.appts[i]
		return &out, nil
	}
	return nil, apperr.NotFound("update", "appointment %s not found", id)
}

func (m *mockApptRepo) GetOutcome(_ context.Context, appointmentID string) (*Outcome, error) {
	o, ok := m.outcomes[appointmentID]
	if !ok {
		return nil, apperr.NotFound("get outcome", "none")
	}
	return &o, nil
}

func (m *mockApptRepo) RecordOutcome(ctx context.Context, o Outcome, from Status) (*Appointment, error) {
	a, err := m.UpdateAppointmentStatus(ctx, o.AppointmentID, from, StatusCompleted)
	if err != nil {
		return nil, err
	}
	m.outcomes[o.AppointmentID] = o
	return a, nil
}

func (m *mockApptRepo) status(id string) Status {
	for _, a := range m.appts {
		if a.ID == id {
			return a.Status
		}
	}
	return ""
}

// -- Mock slot sync --

type mockSlots struct {
	open      map[string]bool
	booked    []timeslot.Key
	released  []timeslot.Key
	bookErr    error
	releaseErr error
	notExists  bool
	onBook     func()
}

func (m *mockSlots) IsOpen(_ context.Context, key timeslot.Key) (bool, error) {
	if m.notExists {
		return false, apperr.NotFound("check slot", "no slot")
	}
	open, ok := m.open[key.String()]
	if !ok {
		return true, nil
	}
	return open, nil
}

func (m *mockSlots) MarkBooked(_ context.Context, key timeslot.Key) error {
	if m.onBook != nil {
		m.onBook()
	}
	if m.bookErr != nil {
		return m.bookErr
	}
	m.booked = append(m.booked, key)
	return nil
}

func (m *mockSlots) MarkAvailable(_ context.Context, key timeslot.Key) error {
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.released = append(m.released, key)
	return nil
}

type mockEvents struct {
	types []string
}

func (m *mockEvents) InsertEvent(_ context.Context, ev EventLog) error {
	m.types = append(m.types, ev.EventType)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local)

func newTestManager(repo *mockApptRepo, slots *mockSlots, opts ...Option) *Manager {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewManager(repo, slots, zerolog.Nop(), opts...)
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := timeslot.ParseDate(s)
	require.NoError(t, err)
	return d
}

func appt(id string, status Status, day, start string) Appointment {
	d, _ := timeslot.ParseDate(day)
	return Appointment{ID: id, PatientID: "P-" + id, DoctorID: "D1", Status: status, Date: d, StartTime: start}
}

func TestBook_CreatesScheduledAppointment(t *testing.T) {
	repo := newMockApptRepo()
	events := &mockEvents{}
	m := newTestManager(repo, &mockSlots{}, WithEvents(events))

	a, err := m.Book(context.Background(), BookRequest{
		DoctorID: "D1", PatientID: "P1", Date: date(t, "2024-05-10"), StartTime: "9 AM",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusScheduled, a.Status)
	assert.Equal(t, 1, repo.creates)
	assert.Equal(t, []string{EventAppointmentBooked}, events.types)
}

func TestBook_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("past date", func(t *testing.T) {
		m := newTestManager(newMockApptRepo(), &mockSlots{})
		_, err := m.Book(ctx, BookRequest{DoctorID: "D1", PatientID: "P1", Date: date(t, "2024-04-30"), StartTime: "9 AM"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("bad time", func(t *testing.T) {
		m := newTestManager(newMockApptRepo(), &mockSlots{})
		_, err := m.Book(ctx, BookRequest{DoctorID: "D1", PatientID: "P1", Date: date(t, "2024-05-10"), StartTime: "noon"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("no slot", func(t *testing.T) {
		m := newTestManager(newMockApptRepo(), &mockSlots{notExists: true})
		_, err := m.Book(ctx, BookRequest{DoctorID: "D1", PatientID: "P1", Date: date(t, "2024-05-10"), StartTime: "9 AM"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("slot not available", func(t *testing.T) {
		slots := &mockSlots{open: map[string]bool{"D1/2024-05-10/09:00": false}}
		repo := newMockApptRepo()
		m := newTestManager(repo, slots)
		_, err := m.Book(ctx, BookRequest{DoctorID: "D1", PatientID: "P1", Date: date(t, "2024-05-10"), StartTime: "9:00 AM"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.Zero(t, repo.creates)
	})
}

func TestAccept_MarksSlotBooked(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-01", "10:00 AM"))
	slots := &mockSlots{}
	m := newTestManager(repo, slots)

	a, err := m.Accept(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	require.Len(t, slots.booked, 1)
	assert.Equal(t, "D1/2024-05-01/10:00", slots.booked[0].String())
}

func TestAccept_RejectsSecondConfirmationOfSameSlot(t *testing.T) {
	repo := newMockApptRepo(
		appt("A1", StatusConfirmed, "2024-05-03", "2 PM"),
		appt("A2", StatusScheduled, "2024-05-03", "2:00 PM"),
	)
	m := newTestManager(repo, &mockSlots{})

	_, err := m.Accept(context.Background(), "A2")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, StatusScheduled, repo.status("A2"))
}

func TestAccept_ConsistencyWarningDoesNotFail(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-03", "2 PM"))
	m := newTestManager(repo, &mockSlots{bookErr: apperr.Consistency("sync slot", "missing")})

	a, err := m.Accept(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
}

func TestAccept_StoreFailureRollsBack(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-03", "2 PM"))
	m := newTestManager(repo, &mockSlots{bookErr: apperr.Store("update slot", assert.AnError)})

	_, err := m.Accept(context.Background(), "A1")
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.Equal(t, StatusScheduled, repo.status("A1"))
}

func TestAccept_RollbackSurvivesCancelledContext(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-03", "2 PM"))
	repo.honorCtx = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	slots := &mockSlots{onBook: cancel, bookErr: apperr.Store("update slot", context.Canceled)}
	m := newTestManager(repo, slots)

	_, err := m.Accept(ctx, "A1")
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.Equal(t, StatusScheduled, repo.status("A1"))
}

func TestDecline_LeavesAvailabilityAlone(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-03", "2 PM"))
	slots := &mockSlots{}
	m := newTestManager(repo, slots)

	a, err := m.Decline(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, a.Status)
	assert.Empty(t, slots.booked)
	assert.Empty(t, slots.released)
}

func TestTerminalStatesAreSticky(t *testing.T) {
	ctx := context.Background()
	for _, st := range []Status{StatusCancelled, StatusDeclined, StatusCompleted} {
		t.Run(string(st), func(t *testing.T) {
			repo := newMockApptRepo(appt("A1", st, "2024-05-03", "2 PM"))
			m := newTestManager(repo, &mockSlots{})

			_, err := m.Accept(ctx, "A1")
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
			_, err = m.Decline(ctx, "A1")
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
			_, err = m.Cancel(ctx, "A1")
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

			assert.Equal(t, st, repo.status("A1"))
		})
	}
}

func TestConfirmedCannotBeDeclined(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	m := newTestManager(repo, &mockSlots{})

	_, err := m.Decline(context.Background(), "A1")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCancel_RevertsSlotWhenConfigured(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	slots := &mockSlots{}
	m := newTestManager(repo, slots, WithRevertOnCancel(true))

	a, err := m.Cancel(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)
	require.Len(t, slots.released, 1)
	assert.Equal(t, "D1/2024-05-03/14:00", slots.released[0].String())
}

func TestCancel_KeepsSlotBookedWhenRevertDisabled(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	slots := &mockSlots{}
	m := newTestManager(repo, slots, WithRevertOnCancel(false))

	_, err := m.Cancel(context.Background(), "A1")
	require.NoError(t, err)
	assert.Empty(t, slots.released)
}

func TestCancel_ScheduledNeverTouchesSlot(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-03", "2 PM"))
	slots := &mockSlots{}
	m := newTestManager(repo, slots)

	_, err := m.Cancel(context.Background(), "A1")
	require.NoError(t, err)
	assert.Empty(t, slots.released)
}

func TestCancelForSlot_DoesNotReleaseSlot(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	slots := &mockSlots{}
	m := newTestManager(repo, slots)

	key, err := timeslot.NewKey("D1", date(t, "2024-05-03"), "2:00 PM")
	require.NoError(t, err)
	undo, err := m.CancelForSlot(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, undo)
	assert.Equal(t, StatusCancelled, repo.status("A1"))
	assert.Empty(t, slots.released)
}

func TestCancelForSlot_UndoRestoresPreviousStatus(t *testing.T) {
	ctx := context.Background()
	for _, st := range []Status{StatusConfirmed, StatusScheduled} {
		t.Run(string(st), func(t *testing.T) {
			repo := newMockApptRepo(appt("A1", st, "2024-05-03", "2 PM"))
			m := newTestManager(repo, &mockSlots{})

			key, err := timeslot.NewKey("D1", date(t, "2024-05-03"), "2 PM")
			require.NoError(t, err)
			undo, err := m.CancelForSlot(ctx, key)
			require.NoError(t, err)
			require.Equal(t, StatusCancelled, repo.status("A1"))

			require.NoError(t, undo(ctx))
			assert.Equal(t, st, repo.status("A1"))

			a, err := m.FindBySlot(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, st, a.Status, "cache must not serve the cancelled copy")
		})
	}
}

func TestCancelForSlot_UndoFailsWhenStatusMovedOn(t *testing.T) {
	ctx := context.Background()
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	m := newTestManager(repo, &mockSlots{})

	key, err := timeslot.NewKey("D1", date(t, "2024-05-03"), "2 PM")
	require.NoError(t, err)
	undo, err := m.CancelForSlot(ctx, key)
	require.NoError(t, err)

	repo.appts[0].Status = StatusCompleted
	err = undo(ctx)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, StatusCompleted, repo.status("A1"))
}

func TestCancel_ReleaseFailureRestoresConfirmed(t *testing.T) {
	ctx := context.Background()
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	events := &mockEvents{}
	slots := &mockSlots{releaseErr: apperr.Store("update slot", assert.AnError)}
	m := newTestManager(repo, slots, WithRevertOnCancel(true), WithEvents(events))

	_, err := m.Cancel(ctx, "A1")
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.Equal(t, StatusConfirmed, repo.status("A1"))
	assert.Empty(t, events.types)

	slots.releaseErr = nil
	a, err := m.Cancel(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)
	require.Len(t, slots.released, 1)
}

func TestFindBySlot(t *testing.T) {
	repo := newMockApptRepo(
		appt("A1", StatusDeclined, "2024-05-03", "2 PM"),
		appt("A2", StatusConfirmed, "2024-05-03", "2:00 pm"),
		appt("A3", StatusScheduled, "2024-05-03", "3 PM"),
	)
	m := newTestManager(repo, &mockSlots{})
	ctx := context.Background()

	key, _ := timeslot.NewKey("D1", date(t, "2024-05-03"), "14:00")
	a, err := m.FindBySlot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "A2", a.ID)

	key, _ = timeslot.NewKey("D1", date(t, "2024-05-03"), "3 PM")
	a, err = m.FindBySlot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "A3", a.ID)

	key, _ = timeslot.NewKey("D1", date(t, "2024-05-03"), "2:30 PM")
	_, err = m.FindBySlot(ctx, key)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordOutcome(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	events := &mockEvents{}
	m := newTestManager(repo, &mockSlots{}, WithEvents(events))
	ctx := context.Background()

	req := OutcomeRequest{
		AppointmentID: "A1",
		ServiceType:   "Consultation",
		Medications:   []Medication{{Name: "Paracetamol", Status: DispensePending, Quantity: 2}},
		FinalOutcome:  "Rest and fluids",
	}
	o, err := m.RecordOutcome(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "A1", o.AppointmentID)
	assert.Equal(t, StatusCompleted, repo.status("A1"))
	assert.Equal(t, []string{EventAppointmentCompleted}, events.types)

	req.FinalOutcome = "changed"
	_, err = m.RecordOutcome(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrDuplicateOutcome)
	assert.Equal(t, "Rest and fluids", repo.outcomes["A1"].FinalOutcome)
}

func TestRecordOutcome_FromScheduled(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-03", "2 PM"))
	m := newTestManager(repo, &mockSlots{})

	_, err := m.RecordOutcome(context.Background(), OutcomeRequest{
		AppointmentID: "A1", ServiceType: "Checkup", FinalOutcome: "Fine",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, repo.status("A1"))
}

func TestRecordOutcome_Validation(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusConfirmed, "2024-05-03", "2 PM"))
	m := newTestManager(repo, &mockSlots{})
	ctx := context.Background()

	cases := map[string]OutcomeRequest{
		"missing service": {AppointmentID: "A1", FinalOutcome: "x"},
		"comma in name": {AppointmentID: "A1", ServiceType: "s", FinalOutcome: "x",
			Medications: []Medication{{Name: "a,b", Status: DispensePending, Quantity: 1}}},
		"zero quantity": {AppointmentID: "A1", ServiceType: "s", FinalOutcome: "x",
			Medications: []Medication{{Name: "a", Status: DispensePending, Quantity: 0}}},
		"bad status": {AppointmentID: "A1", ServiceType: "s", FinalOutcome: "x",
			Medications: []Medication{{Name: "a", Status: "GIVEN", Quantity: 1}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.RecordOutcome(ctx, req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Equal(t, StatusConfirmed, repo.status("A1"))
}

func TestPending_CurrentMonthScheduledInStoredOrder(t *testing.T) {
	repo := newMockApptRepo(
		appt("A1", StatusScheduled, "2024-05-20", "2 PM"),
		appt("A2", StatusConfirmed, "2024-05-03", "2 PM"),
		appt("A3", StatusScheduled, "2024-06-01", "9 AM"),
		appt("A4", StatusScheduled, "2024-05-02", "9 AM"),
	)
	m := newTestManager(repo, &mockSlots{})

	pending, err := m.Pending(context.Background(), "D1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "A1", pending[0].ID)
	assert.Equal(t, "A4", pending[1].ID)
}

func TestLoad_CachedUntilInvalidated(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusScheduled, "2024-05-20", "2 PM"))
	m := newTestManager(repo, &mockSlots{})
	ctx := context.Background()

	first, err := m.Load(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	repo.appts = append(repo.appts, appt("A2", StatusScheduled, "2024-05-21", "2 PM"))
	cached, err := m.Load(ctx, "D1")
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	m.Invalidate("D1")
	fresh, err := m.Load(ctx, "D1")
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestSchedule_RenderMonth(t *testing.T) {
	repo := newMockApptRepo(
		appt("A1", StatusConfirmed, "2024-05-14", "2 PM"),
		appt("A2", StatusCancelled, "2024-05-14", "9 AM"),
		appt("A3", StatusScheduled, "2024-05-14", "10 AM"),
		appt("A4", StatusScheduled, "2024-05-02", "4 PM"),
		appt("A5", StatusConfirmed, "2024-06-01", "9 AM"),
	)
	m := newTestManager(repo, &mockSlots{})

	s, err := m.Schedule(context.Background(), "D1", 2024, time.May)
	require.NoError(t, err)
	assert.Equal(t, []int{14}, s.ConfirmedDays)
	require.Len(t, s.Appointments, 3)
	assert.Equal(t, "A4", s.Appointments[0].ID)
	assert.Equal(t, "A3", s.Appointments[1].ID)
	assert.Equal(t, "A1", s.Appointments[2].ID)

	var buf bytes.Buffer
	require.NoError(t, RenderMonth(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "May 2024")
	assert.Contains(t, out, " 14* ")
	assert.NotContains(t, out, "A2")
	assert.Contains(t, out, "2024-05-02 4 PM")
}

func TestSchedule_NothingToShow(t *testing.T) {
	repo := newMockApptRepo(appt("A1", StatusCancelled, "2024-07-14", "2 PM"))
	m := newTestManager(repo, &mockSlots{})

	s, err := m.Schedule(context.Background(), "D1", 2024, time.July)
	require.NoError(t, err)
	assert.True(t, s.Empty())

	var buf bytes.Buffer
	require.NoError(t, RenderMonth(&buf, s))
	assert.Equal(t, "July 2024: nothing to show.\n", buf.String())
}
