package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP routes of the back-office API.
func NewRouter(h *ComposerHandler, logger *slog.Logger, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/health", HealthCheck)
	r.Get("/orders/revision", h.OrdersRevision)

	r.Route("/composers", func(r chi.Router) {
		r.Post("/", h.Open)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.View)
			r.Delete("/", h.Close)

			r.Post("/courses", h.AddCourseSlot)
			r.Put("/courses/{index}", h.SetCourse)
			r.Delete("/courses/{index}", h.RemoveCourseSlot)

			r.Put("/course-filter", h.UpdateCourseFilter)
			r.Delete("/course-filter", h.ResetCourseFilter)
			r.Get("/course-options", h.SearchCourses)
			r.Get("/customer-options", h.SearchCustomers)

			r.Put("/customer", h.SelectCustomer)
			r.Delete("/customer", h.ClearCustomer)
			r.Put("/inline/{field}", h.SetInlineField)
			r.Put("/payment", h.SetPayment)

			r.Post("/submit", h.Submit)
		})
	})

	return r
}
