package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

func availabilityCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Submit, edit or view a doctor's availability",
	}
	cmd.AddCommand(availabilitySubmitCmd(g), availabilityEditCmd(g), availabilityViewCmd(g))
	return cmd
}

func availabilitySubmitCmd(g *globalFlags) *cobra.Command {
	var doctorID, date, start, end, status string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Open a time range, split into one-hour slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := timeslot.ParseDate(date)
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				slots, err := a.Scheduler.SubmitAvailability(ctx, availability.SubmitRequest{
					DoctorID:  doctorID,
					Date:      d,
					StartTime: start,
					EndTime:   end,
					Status:    availability.Status(strings.ToUpper(status)),
				})
				if err != nil {
					return err
				}
				for _, s := range slots {
					fmt.Fprintf(cmd.OutOrStdout(), "created %s %s-%s %s\n", timeslot.FormatDate(s.Date), s.StartTime, s.EndTime, s.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "", "start time, e.g. 9 AM")
	cmd.Flags().StringVar(&end, "end", "", "end time, e.g. 12 PM")
	cmd.Flags().StringVar(&status, "status", string(availability.StatusAvailable), "AVAILABLE or BUSY")
	markRequired(cmd, "doctor", "date", "start", "end")
	return cmd
}

func availabilityEditCmd(g *globalFlags) *cobra.Command {
	var doctorID, date, start, newStart, newEnd, newStatus string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change the times or status of one slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := timeslot.ParseDate(date)
			if err != nil {
				return err
			}
			req := availability.EditRequest{DoctorID: doctorID, Date: d, StartTime: start}
			if cmd.Flags().Changed("new-start") {
				req.NewStartTime = &newStart
			}
			if cmd.Flags().Changed("new-end") {
				req.NewEndTime = &newEnd
			}
			if cmd.Flags().Changed("new-status") {
				st := availability.Status(strings.ToUpper(newStatus))
				req.NewStatus = &st
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Scheduler.EditAvailability(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s %s-%s %s\n", timeslot.FormatDate(s.Date), s.StartTime, s.EndTime, s.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	cmd.Flags().StringVar(&date, "date", "", "date of the slot, YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "", "current start time of the slot")
	cmd.Flags().StringVar(&newStart, "new-start", "", "new start time")
	cmd.Flags().StringVar(&newEnd, "new-end", "", "new end time")
	cmd.Flags().StringVar(&newStatus, "new-status", "", "AVAILABLE or BUSY")
	markRequired(cmd, "doctor", "date", "start")
	return cmd
}

func availabilityViewCmd(g *globalFlags) *cobra.Command {
	var doctorID string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the doctor's upcoming availability grouped by day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Scheduler.RenderAvailability(ctx, cmd.OutOrStdout(), doctorID)
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	markRequired(cmd, "doctor")
	return cmd
}

func bookCmd(g *globalFlags) *cobra.Command {
	var doctorID, patientID, date, start string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Request an appointment in an available slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := timeslot.ParseDate(date)
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				appt, err := a.Scheduler.Book(ctx, appointment.BookRequest{
					DoctorID: doctorID, PatientID: patientID, Date: d, StartTime: start,
				})
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), appt)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "", "slot start time")
	markRequired(cmd, "doctor", "patient", "date", "start")
	return cmd
}

func transitionCmd(g *globalFlags, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <appointment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var fn func(context.Context, string) (*appointment.Appointment, error)
				switch action {
				case "accept":
					fn = a.Scheduler.Accept
				case "decline":
					fn = a.Scheduler.Decline
				default:
					fn = a.Scheduler.Cancel
				}
				appt, err := fn(ctx, args[0])
				if err != nil {
					return err
				}
				printAppointment(cmd.OutOrStdout(), appt)
				return nil
			})
		},
	}
}

func outcomeCmd(g *globalFlags) *cobra.Command {
	var service, notes, final string
	var meds []string

	cmd := &cobra.Command{
		Use:   "outcome <appointment-id>",
		Short: "Record the outcome of a confirmed appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := appointment.OutcomeRequest{
				AppointmentID:     args[0],
				ServiceType:       service,
				ConsultationNotes: notes,
				FinalOutcome:      final,
			}
			for _, raw := range meds {
				m, err := parseMedication(raw)
				if err != nil {
					return err
				}
				req.Medications = append(req.Medications, m)
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				o, err := a.Scheduler.RecordOutcome(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded outcome for %s: %s (%d medications)\n",
					o.AppointmentID, o.FinalOutcome, len(o.Medications))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "service type")
	cmd.Flags().StringVar(&notes, "notes", "", "consultation notes")
	cmd.Flags().StringVar(&final, "final", "", "final outcome")
	cmd.Flags().StringArrayVar(&meds, "med", nil, "medication as NAME:STATUS:QTY, repeatable")
	markRequired(cmd, "service", "final")
	return cmd
}

// parseMedication reads NAME:STATUS:QTY. The name may itself contain colons.
func parseMedication(raw string) (appointment.Medication, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return appointment.Medication{}, fmt.Errorf("medication %q: want NAME:STATUS:QTY", raw)
	}
	n := len(parts)
	qty, err := strconv.Atoi(strings.TrimSpace(parts[n-1]))
	if err != nil {
		return appointment.Medication{}, fmt.Errorf("medication %q: quantity: %w", raw, err)
	}
	status, err := appointment.ParseDispenseStatus(parts[n-2])
	if err != nil {
		return appointment.Medication{}, fmt.Errorf("medication %q: %w", raw, err)
	}
	return appointment.Medication{
		Name:     strings.TrimSpace(strings.Join(parts[:n-2], ":")),
		Status:   status,
		Quantity: qty,
	}, nil
}

func pendingCmd(g *globalFlags) *cobra.Command {
	var doctorID string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List this month's appointment requests awaiting a decision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				appts, err := a.Scheduler.Pending(ctx, doctorID)
				if err != nil {
					return err
				}
				if len(appts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending appointments.")
					return nil
				}
				for i := range appts {
					printAppointment(cmd.OutOrStdout(), &appts[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	markRequired(cmd, "doctor")
	return cmd
}

func scheduleCmd(g *globalFlags) *cobra.Command {
	var doctorID string
	var year, month int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print a month calendar of the doctor's appointments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Scheduler.RenderSchedule(ctx, cmd.OutOrStdout(), doctorID, year, time.Month(month))
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	cmd.Flags().IntVar(&year, "year", 0, "year, defaults to the current one")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12, defaults to the current one")
	markRequired(cmd, "doctor")
	return cmd
}

func appointmentsCmd(g *globalFlags) *cobra.Command {
	var patientID string

	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List a patient's appointments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				appts, err := a.Scheduler.PatientAppointments(ctx, patientID)
				if err != nil {
					return err
				}
				for i := range appts {
					printAppointment(cmd.OutOrStdout(), &appts[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	markRequired(cmd, "patient")
	return cmd
}

func reconcileCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Report slots and appointments that disagree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Scheduler.Reconcile(ctx)
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), report)
			})
		},
	}
}

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.StorePostgres {
				return fmt.Errorf("migrate needs --store=%s", config.StorePostgres)
			}
			pool, err := db.ConnectPostgres(cmd.Context(), cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}

func printAppointment(w io.Writer, a *appointment.Appointment) {
	fmt.Fprintf(w, "%s  %s %-8s doctor %s patient %s  %s\n",
		a.ID, timeslot.FormatDate(a.Date), a.StartTime, a.DoctorID, a.PatientID, a.Status)
}

func printReport(w io.Writer, r scheduling.Report) error {
	if r.Clean() {
		fmt.Fprintf(w, "checked %d slots and %d appointments: consistent\n", r.Slots, r.Appointments)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		_ = cmd.MarkFlagRequired(n)
	}
}
