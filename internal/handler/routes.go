package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Events     *EventHandler
	Attendance *AttendanceHandler
	Members    repository.MemberStore
	Guard      auth.Guard
	Logger     *zap.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	need := func(c auth.Capability) func(http.Handler) http.Handler {
		return Require(d.Guard, c)
	}

	r.Group(func(r chi.Router) {
		r.Use(Identify(d.Members))

		r.Get("/members/me", d.Events.Me)
		r.With(need(auth.CapManageMembers)).Put("/members/{id}", d.Events.UpsertMember)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", d.Events.ListEvents)
			r.With(need(auth.CapManageEvents)).Post("/", d.Events.CreateEvent)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", d.Events.GetEvent)

				r.With(need(auth.CapManageEvents)).Post("/open", d.Events.OpenEvent)
				r.With(need(auth.CapManageEvents)).Post("/close", d.Events.CloseEvent)
				r.With(need(auth.CapViewRegistrations)).Get("/registrations", d.Events.ListRegistrations)
				r.With(need(auth.CapCheckInStaff)).Get("/checkin-qr.png", d.Events.CheckInQR)

				r.With(need(auth.CapRegister)).Post("/register", d.Attendance.Register)
				r.With(need(auth.CapParticipate)).Post("/cancellation", d.Attendance.RequestCancellation)
				r.With(need(auth.CapParticipate)).Delete("/waitlist", d.Attendance.WithdrawWaitlist)
				r.With(need(auth.CapParticipate)).Post("/self-check-in", d.Attendance.SelfCheckIn)

				r.With(need(auth.CapCheckInStaff)).Post("/check-in", d.Attendance.CheckIn)
				r.With(need(auth.CapApprove)).Post("/registrations/{memberID}/cancellation-decision", d.Attendance.DecideCancellation)
				r.With(need(auth.CapApprove)).Post("/registrations/{memberID}/waitlist-decision", d.Attendance.DecideWaitlist)
				r.With(need(auth.CapApprove)).Post("/finalize", d.Attendance.Finalize)
			})
		})
	})

	return r
}
