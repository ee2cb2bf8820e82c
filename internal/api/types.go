package api

import (
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type SubmitAvailabilityRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,wallclock"`
	EndTime   string `json:"end_time" validate:"required,endclock"`
	Status    string `json:"status" validate:"required,oneof=AVAILABLE BUSY"`
}

type EditAvailabilityRequest struct {
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string  `json:"start_time" validate:"required,wallclock"`
	NewStartTime *string `json:"new_start_time,omitempty" validate:"omitempty,wallclock"`
	NewEndTime   *string `json:"new_end_time,omitempty" validate:"omitempty,endclock"`
	NewStatus    *string `json:"new_status,omitempty" validate:"omitempty,oneof=AVAILABLE BUSY"`
}

type BookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required"`
	PatientID string `json:"patient_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,wallclock"`
}

type MedicationRequest struct {
	Name     string `json:"name" validate:"required,excludesall=0x2C"`
	Status   string `json:"status" validate:"required,oneof=PENDING DISPENSED"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type RecordOutcomeRequest struct {
	ServiceType       string              `json:"service_type" validate:"required"`
	ConsultationNotes string              `json:"consultation_notes"`
	Medications       []MedicationRequest `json:"medications" validate:"dive"`
	FinalOutcome      string              `json:"final_outcome" validate:"required"`
}

type SlotResponse struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

func toSlotResponse(s availability.Slot) SlotResponse {
	return SlotResponse{
		DoctorID:  s.DoctorID,
		Date:      timeslot.FormatDate(s.Date),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    string(s.Status),
	}
}

type RangeResponse struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

type DayResponse struct {
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Ranges  []RangeResponse `json:"ranges"`
}

func toDayResponses(days []availability.Day) []DayResponse {
	out := make([]DayResponse, 0, len(days))
	for _, d := range days {
		dr := DayResponse{Date: timeslot.FormatDate(d.Date), Weekday: d.Date.Weekday().String()}
		for _, r := range d.Ranges {
			dr.Ranges = append(dr.Ranges, RangeResponse{Start: r.Start.String(), End: r.End.String(), Status: string(r.Status)})
		}
		out = append(out, dr)
	}
	return out
}

type AppointmentResponse struct {
	ID            string `json:"id"`
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	Status        string `json:"status"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	OutcomeRecord string `json:"outcome_record,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Status:        string(a.Status),
		Date:          timeslot.FormatDate(a.Date),
		StartTime:     a.StartTime,
		OutcomeRecord: a.OutcomeRecord,
	}
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type MonthScheduleResponse struct {
	DoctorID      string                `json:"doctor_id"`
	Year          int                   `json:"year"`
	Month         int                   `json:"month"`
	ConfirmedDays []int                 `json:"confirmed_days"`
	Appointments  []AppointmentResponse `json:"appointments"`
}

type MedicationResponse struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Quantity int    `json:"quantity"`
}

type OutcomeResponse struct {
	AppointmentID     string               `json:"appointment_id"`
	Date              string               `json:"date"`
	ServiceType       string               `json:"service_type"`
	ConsultationNotes string               `json:"consultation_notes,omitempty"`
	Medications       []MedicationResponse `json:"medications"`
	FinalOutcome      string               `json:"final_outcome"`
}

func toOutcomeResponse(o appointment.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		AppointmentID:     o.AppointmentID,
		Date:              timeslot.FormatDate(o.Date),
		ServiceType:       o.ServiceType,
		ConsultationNotes: o.ConsultationNotes,
		Medications:       []MedicationResponse{},
		FinalOutcome:      o.FinalOutcome,
	}
	for _, m := range o.Medications {
		resp.Medications = append(resp.Medications, MedicationResponse{Name: m.Name, Status: string(m.Status), Quantity: m.Quantity})
	}
	return resp
}

type ReconcileResponse struct {
	CheckedAt    time.Time            `json:"checked_at"`
	Slots        int                  `json:"slots"`
	Appointments int                  `json:"appointments"`
	Findings     []scheduling.Finding `json:"findings"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string       `json:"error"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}
