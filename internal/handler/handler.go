// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the composer service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/course-backoffice/internal/adminapi"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/composer"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/ctxlog"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/model"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/service"
	"github.com/Shivanand-hulikatti/course-backoffice/internal/validation"
)

// ComposerHandler holds all HTTP handlers for the registration composer API.
type ComposerHandler struct {
	svc *service.ComposerService
}

// NewComposerHandler constructs a ComposerHandler.
func NewComposerHandler(svc *service.ComposerService) *ComposerHandler {
	return &ComposerHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return validation.Struct(dst)
}

type customerView struct {
	SelectedID   string               `json:"selected_id,omitempty"`
	Inline       model.InlineCustomer `json:"inline"`
	InlineLocked bool                 `json:"inline_locked"`
}

type composerResponse struct {
	ID            string                `json:"id"`
	Customer      customerView          `json:"customer"`
	Courses       []model.CourseSlot    `json:"courses"`
	PaymentMethod model.PaymentMethod   `json:"payment_method,omitempty"`
	Note          string                `json:"note,omitempty"`
	CourseFilter  model.CourseFilter    `json:"course_filter"`
	CourseOptions []model.CourseSummary `json:"course_options"`
	InFlight      bool                  `json:"in_flight"`
}

func toResponse(st composer.State) composerResponse {
	d := st.Draft
	resp := composerResponse{
		ID: d.ID,
		Customer: customerView{
			SelectedID:   d.SelectedCustomerID,
			Inline:       d.Inline,
			InlineLocked: d.SelectedCustomerID != "",
		},
		Courses:       d.Courses,
		PaymentMethod: d.PaymentMethod,
		Note:          d.Note,
		CourseFilter:  d.CourseFilter,
		CourseOptions: st.CourseOptions,
		InFlight:      st.InFlight,
	}
	if resp.Courses == nil {
		resp.Courses = []model.CourseSlot{}
	}
	if resp.CourseOptions == nil {
		resp.CourseOptions = []model.CourseSummary{}
	}
	return resp
}

// fail maps service, composer and admin API errors to HTTP statuses.
func fail(w http.ResponseWriter, r *http.Request, err error, notice *model.Notice) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var serr *composer.SubmitError
	var remote *adminapi.RemoteError
	var network *adminapi.NetworkError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "composer not found"
	case errors.Is(err, composer.ErrSubmitInFlight), errors.Is(err, composer.ErrInlineLocked):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, composer.ErrUnknownCourse),
		errors.Is(err, composer.ErrSlotOutOfRange),
		errors.Is(err, composer.ErrUnknownField),
		errors.Is(err, composer.ErrEmptyCustomerRef),
		errors.Is(err, composer.ErrInvalidPaymentMethod),
		errors.Is(err, composer.ErrInvalidFilter):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &serr):
		msg = serr.Message
		switch {
		case serr.Kind.IsValidation():
			status = http.StatusUnprocessableEntity
		case serr.Kind == composer.KindRemoteRejected:
			status = http.StatusBadGateway
		default:
			status = http.StatusGatewayTimeout
		}
	case errors.As(err, &remote):
		status, msg = http.StatusBadGateway, "admin api rejected the request"
		if remote.Message != "" {
			msg = remote.Message
		}
	case errors.As(err, &network):
		status, msg = http.StatusGatewayTimeout, "admin api unreachable"
	}

	if status >= http.StatusInternalServerError {
		ctxlog.FromContext(r.Context()).Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg, Notice: notice})
}

func composerID(r *http.Request) string { return chi.URLParam(r, "id") }

func slotIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "course slot index must be an integer")
		return 0, false
	}
	return index, true
}

func (h *ComposerHandler) respondState(w http.ResponseWriter, r *http.Request, status int, st composer.State, err error) {
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	writeJSON(w, status, toResponse(st))
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Open handles POST /composers
// Starts a new composer with one empty course slot.
func (h *ComposerHandler) Open(w http.ResponseWriter, r *http.Request) {
	_, st, err := h.svc.Open(r.Context())
	h.respondState(w, r, http.StatusCreated, st, err)
}

// View handles GET /composers/{id}
func (h *ComposerHandler) View(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.View(r.Context(), composerID(r))
	h.respondState(w, r, http.StatusOK, st, err)
}

// Close handles DELETE /composers/{id}
// Discards the form. A submission already in flight is not cancelled.
func (h *ComposerHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(r.Context(), composerID(r)); err != nil {
		fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCourseSlot handles POST /composers/{id}/courses
func (h *ComposerHandler) AddCourseSlot(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.AddCourseSlot(r.Context(), composerID(r))
	h.respondState(w, r, http.StatusOK, st, err)
}

type setCourseRequest struct {
	CourseID string `json:"course_id" validate:"max=100"`
}

// SetCourse handles PUT /composers/{id}/courses/{index}
// The course must come from the latest course-options search; "" clears the slot.
func (h *ComposerHandler) SetCourse(w http.ResponseWriter, r *http.Request) {
	index, ok := slotIndex(w, r)
	if !ok {
		return
	}
	var req setCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	st, err := h.svc.SetCourseAt(r.Context(), composerID(r), index, req.CourseID)
	h.respondState(w, r, http.StatusOK, st, err)
}

// RemoveCourseSlot handles DELETE /composers/{id}/courses/{index}
func (h *ComposerHandler) RemoveCourseSlot(w http.ResponseWriter, r *http.Request) {
	index, ok := slotIndex(w, r)
	if !ok {
		return
	}
	st, err := h.svc.RemoveCourseSlot(r.Context(), composerID(r), index)
	h.respondState(w, r, http.StatusOK, st, err)
}

type courseFilterRequest struct {
	SearchText  *string `json:"searchText" validate:"omitempty,max=200"`
	Status      *string `json:"status" validate:"omitempty,oneof=PUBLISHED DRAFT UPCOMING"`
	BasicStatus *string `json:"basicStatus" validate:"omitempty,oneof=FREE PAID"`
}

// UpdateCourseFilter handles PUT /composers/{id}/course-filter
// Omitted fields keep their value; "" clears a field.
func (h *ComposerHandler) UpdateCourseFilter(w http.ResponseWriter, r *http.Request) {
	var req courseFilterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	st, err := h.svc.UpdateCourseFilter(r.Context(), composerID(r), service.CourseFilterUpdate{
		SearchText:  req.SearchText,
		Status:      req.Status,
		BasicStatus: req.BasicStatus,
	})
	h.respondState(w, r, http.StatusOK, st, err)
}

// ResetCourseFilter handles DELETE /composers/{id}/course-filter
func (h *ComposerHandler) ResetCourseFilter(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ResetCourseFilter(r.Context(), composerID(r))
	h.respondState(w, r, http.StatusOK, st, err)
}

// SearchCourses handles GET /composers/{id}/course-options
// Runs the composer's course filter against the course directory.
func (h *ComposerHandler) SearchCourses(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.SearchCourses(r.Context(), composerID(r))
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SearchCustomers handles GET /composers/{id}/customer-options?search=&page=&perPage=
func (h *ComposerHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.CustomerFilter{Search: q.Get("search")}
	var err error
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
	}
	if v := q.Get("perPage"); v != "" {
		if f.PerPage, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "perPage must be an integer")
			return
		}
	}

	page, err := h.svc.SearchCustomers(r.Context(), composerID(r), f)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	if page.Customers == nil {
		page.Customers = []model.CustomerSummary{}
	}
	writeJSON(w, http.StatusOK, page)
}

type selectCustomerRequest struct {
	UserID string `json:"user_id" validate:"required,max=100"`
}

// SelectCustomer handles PUT /composers/{id}/customer
// An existing customer takes priority over any inline customer fields.
func (h *ComposerHandler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	var req selectCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	st, err := h.svc.SelectExistingCustomer(r.Context(), composerID(r), req.UserID)
	h.respondState(w, r, http.StatusOK, st, err)
}

// ClearCustomer handles DELETE /composers/{id}/customer
func (h *ComposerHandler) ClearCustomer(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ClearExistingCustomer(r.Context(), composerID(r))
	h.respondState(w, r, http.StatusOK, st, err)
}

type inlineFieldRequest struct {
	Value string `json:"value" validate:"max=200"`
}

// SetInlineField handles PUT /composers/{id}/inline/{field}
// field is one of name, email or phone.
func (h *ComposerHandler) SetInlineField(w http.ResponseWriter, r *http.Request) {
	var req inlineFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	st, err := h.svc.SetInlineField(r.Context(), composerID(r), chi.URLParam(r, "field"), req.Value)
	h.respondState(w, r, http.StatusOK, st, err)
}

type paymentRequest struct {
	PaymentMethod model.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=SSL_PAY BAKSH"`
	Note          string              `json:"note" validate:"max=1000"`
}

// SetPayment handles PUT /composers/{id}/payment
func (h *ComposerHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	st, err := h.svc.SetPayment(r.Context(), composerID(r), req.PaymentMethod, req.Note)
	h.respondState(w, r, http.StatusOK, st, err)
}

type submitResponse struct {
	Notice         *model.Notice `json:"notice"`
	OrdersRevision int64         `json:"orders_revision"`
}

// Submit handles POST /composers/{id}/submit
// On success the composer is gone and the order list revision has moved on.
// On failure the composer stays open with every field intact.
func (h *ComposerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	notice, err := h.svc.Submit(r.Context(), composerID(r))
	if err != nil {
		fail(w, r, err, notice)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Notice: notice, OrdersRevision: h.svc.OrdersRevision()})
}

// OrdersRevision handles GET /orders/revision
// Dashboards poll it and refetch their order list when it changes.
func (h *ComposerHandler) OrdersRevision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"revision": h.svc.OrdersRevision()})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
