package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type Handler struct {
	sched    *scheduling.Scheduler
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(sched *scheduling.Scheduler, log zerolog.Logger) *Handler {
	return &Handler{sched: sched, validate: newValidator(), log: log, now: time.Now}
}

func (h *Handler) submitAvailability(w http.ResponseWriter, r *http.Request) {
	var req SubmitAvailabilityRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := timeslot.ParseDate(req.Date)

	slots, err := h.sched.SubmitAvailability(r.Context(), availability.SubmitRequest{
		DoctorID:  chi.URLParam(r, "doctorID"),
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    availability.Status(req.Status),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, toSlotResponse(s))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) editAvailability(w http.ResponseWriter, r *http.Request) {
	var req EditAvailabilityRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := timeslot.ParseDate(req.Date)

	edit := availability.EditRequest{
		DoctorID:     chi.URLParam(r, "doctorID"),
		Date:         date,
		StartTime:    req.StartTime,
		NewStartTime: req.NewStartTime,
		NewEndTime:   req.NewEndTime,
	}
	if req.NewStatus != nil {
		st := availability.Status(*req.NewStatus)
		edit.NewStatus = &st
	}

	slot, err := h.sched.EditAvailability(r.Context(), edit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(slot))
}

// viewAvailability answers JSON by default and the text rendering with
// ?format=text.
func (h *Handler) viewAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")

	days, err := h.sched.Availability(r.Context(), doctorID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		var buf bytes.Buffer
		if err := availability.Render(&buf, days); err != nil {
			h.handleError(w, r, err)
			return
		}
		writeText(w, http.StatusOK, buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, toDayResponses(days))
}

func (h *Handler) pendingAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.sched.Pending(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

// monthSchedule defaults to the current month when year or month is absent.
func (h *Handler) monthSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	now := h.now()

	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_year", "year must be a number")
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be a number")
			return
		}
		month = time.Month(n)
	}

	sched, err := h.sched.Schedule(r.Context(), doctorID, year, month)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		var buf bytes.Buffer
		if err := appointment.RenderMonth(&buf, sched); err != nil {
			h.handleError(w, r, err)
			return
		}
		writeText(w, http.StatusOK, buf.Bytes())
		return
	}

	days := sched.ConfirmedDays
	if days == nil {
		days = []int{}
	}
	writeJSON(w, http.StatusOK, MonthScheduleResponse{
		DoctorID:      sched.DoctorID,
		Year:          sched.Year,
		Month:         int(sched.Month),
		ConfirmedDays: days,
		Appointments:  toAppointmentResponses(sched.Appointments),
	})
}

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := timeslot.ParseDate(req.Date)

	a, err := h.sched.Book(r.Context(), appointment.BookRequest{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      date,
		StartTime: req.StartTime,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*a))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.sched.Appointment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*a))
}

func (h *Handler) patientAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.sched.PatientAppointments(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *Handler) transition(fn func(r *http.Request, id string) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := fn(r, chi.URLParam(r, "id"))
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*a))
	}
}

func (h *Handler) acceptAppointment(r *http.Request, id string) (*appointment.Appointment, error) {
	return h.sched.Accept(r.Context(), id)
}

func (h *Handler) declineAppointment(r *http.Request, id string) (*appointment.Appointment, error) {
	return h.sched.Decline(r.Context(), id)
}

func (h *Handler) cancelAppointment(r *http.Request, id string) (*appointment.Appointment, error) {
	return h.sched.Cancel(r.Context(), id)
}

func (h *Handler) recordOutcome(w http.ResponseWriter, r *http.Request) {
	var req RecordOutcomeRequest
	if !h.decode(w, r, &req) {
		return
	}

	meds := make([]appointment.Medication, 0, len(req.Medications))
	for _, m := range req.Medications {
		meds = append(meds, appointment.Medication{
			Name:     m.Name,
			Status:   appointment.DispenseStatus(m.Status),
			Quantity: m.Quantity,
		})
	}

	o, err := h.sched.RecordOutcome(r.Context(), appointment.OutcomeRequest{
		AppointmentID:     chi.URLParam(r, "id"),
		ServiceType:       req.ServiceType,
		Medications:       meds,
		ConsultationNotes: req.ConsultationNotes,
		FinalOutcome:      req.FinalOutcome,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutcomeResponse(*o))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.sched.Reconcile(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	findings := report.Findings
	if findings == nil {
		findings = []scheduling.Finding{}
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		CheckedAt:    report.CheckedAt,
		Slots:        report.Slots,
		Appointments: report.Appointments,
		Findings:     findings,
	})
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, apperr.ErrDuplicateOutcome):
		writeError(w, http.StatusConflict, "duplicate_outcome", err.Error())
	case errors.Is(err, scheduling.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "doctor schedule is being changed, please retry shortly")
	default:
		h.log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
