package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/descanso-app/descanso/internal/platform/httpx"
	"github.com/descanso-app/descanso/internal/shared"
)

// Handler wires the request lifecycle operations onto HTTP.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	repo      Repository
	hub       *Hub
	recorder  *shared.DecisionRecorder
	stats     Stats
	validator *validator.Validate
}

// NewHandler constructs a Handler. The recorder and stats may be nil when no
// decision trail or metrics are kept (tests).
func NewHandler(logger *slog.Logger, manager *Manager, repo Repository, hub *Hub, recorder *shared.DecisionRecorder, stats Stats) *Handler {
	return &Handler{
		logger:    logger,
		manager:   manager,
		repo:      repo,
		hub:       hub,
		recorder:  recorder,
		stats:     stats,
		validator: validator.New(),
	}
}

// MountRoutes registers the request routes on the provided router. The
// router must run behind the identity middleware. The stream endpoint is
// mounted separately via HandleStream, outside any request timeout.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/requests", h.handleSubmit)
	r.Get("/requests", h.handleListAll)
	r.Get("/requests/mine", h.handleMine)
	r.Get("/requests/pending", h.handlePending)
	r.Post("/requests/{id}/decision", h.handleDecide)
	r.Get("/calendar", h.handleCalendar)
}

type submitPayload struct {
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Type         string `json:"type" validate:"required,oneof=vacation absence"`
	FractionType string `json:"fraction_type" validate:"omitempty,oneof=30 15-15 20-10 15-5-10 14-9-7"`
	Notes        string `json:"notes" validate:"omitempty,max=2000"`
}

type decisionPayload struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// requestView is the API projection of a request. Calendar dates travel as
// plain dates, not timestamps.
type requestView struct {
	ID           uuid.UUID  `json:"id"`
	EmployeeID   uuid.UUID  `json:"employeeId"`
	EmployeeName string     `json:"employeeName"`
	StartDate    string     `json:"startDate"`
	EndDate      string     `json:"endDate"`
	Days         int        `json:"days"`
	Type         Kind       `json:"type"`
	FractionType string     `json:"fractionType,omitempty"`
	Status       Status     `json:"status"`
	RequestDate  time.Time  `json:"requestDate"`
	ApprovalDate *time.Time `json:"approvalDate,omitempty"`
	ManagerID    *uuid.UUID `json:"managerId,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

func viewOf(req Request) requestView {
	return requestView{
		ID:           req.ID,
		EmployeeID:   req.EmployeeID,
		EmployeeName: req.EmployeeName,
		StartDate:    req.StartDate.UTC().Format(DateLayout),
		EndDate:      req.EndDate.UTC().Format(DateLayout),
		Days:         req.Days,
		Type:         req.Kind,
		FractionType: string(req.FractionType),
		Status:       req.Status,
		RequestDate:  req.RequestDate,
		ApprovalDate: req.ApprovalDate,
		ManagerID:    req.ManagerID,
		Notes:        req.Notes,
	}
}

func viewsOf(reqs []Request) []requestView {
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, viewOf(req))
	}
	return out
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var payload submitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	start, _ := time.ParseInLocation(DateLayout, payload.StartDate, time.UTC)
	end, _ := time.ParseInLocation(DateLayout, payload.EndDate, time.UTC)

	engine, err := h.manager.Engine(r.Context(), viewer)
	if err != nil {
		h.logger.Error("open engine", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	created, err := engine.Submit(r.Context(), SubmitInput{
		StartDate:    start,
		EndDate:      end,
		Kind:         Kind(payload.Type),
		FractionType: FractionType(payload.FractionType),
		Notes:        payload.Notes,
	})
	if err != nil {
		if !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("submit request", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	h.recordDecision(r, created.ID, viewer.ID, shared.DecisionSubmit, created.Notes)
	if h.stats != nil {
		h.stats.RequestSubmitted()
	}
	httpx.JSON(w, http.StatusCreated, viewOf(created))
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return
	}
	var payload decisionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	engine, err := h.manager.Engine(r.Context(), viewer)
	if err != nil {
		h.logger.Error("open engine", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	decision := Decision(payload.Decision)
	updated, err := engine.Decide(r.Context(), id, decision)
	if err != nil {
		if errors.Is(err, shared.ErrStaleState) || errors.Is(err, shared.ErrNotFound) {
			if h.stats != nil {
				h.stats.DecisionConflict()
			}
		} else if !errors.Is(err, shared.ErrUnauthorized) && !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("decide request", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	action := shared.DecisionApprove
	if decision == DecisionReject {
		action = shared.DecisionReject
	}
	h.recordDecision(r, updated.ID, viewer.ID, action, "")
	if h.stats != nil {
		h.stats.RequestDecided(payload.Decision)
	}
	httpx.JSON(w, http.StatusOK, viewOf(updated))
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	engine, err := h.manager.Engine(r.Context(), viewer)
	if err != nil {
		h.logger.Error("open engine", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	var own []Request
	for _, req := range engine.Requests() {
		if req.EmployeeID == viewer.ID {
			own = append(own, req)
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": viewsOf(own)})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if !viewer.IsManager() {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	engine, err := h.manager.Engine(r.Context(), viewer)
	if err != nil {
		h.logger.Error("open engine", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": viewsOf(engine.Pending())})
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if !viewer.IsManager() {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	total, err := h.repo.CountAll(r.Context())
	if err != nil {
		h.logger.Error("count requests", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	p := shared.NewPagination(page, perPage, total)
	reqs, err := h.repo.ListAllPage(r.Context(), p.PerPage, p.Offset())
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": viewsOf(reqs), "pagination": p})
}

// HandleStream serves the viewer's live cache updates and notifications as
// server-sent events.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}
	engine, err := h.manager.Engine(r.Context(), viewer)
	if err != nil {
		h.logger.Error("open engine", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, detach := h.hub.Attach(viewer.ID)
	defer detach()

	h.writeSSE(w, StreamSync, viewsOf(engine.Requests()))
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			switch ev.Kind {
			case StreamSync:
				h.writeSSE(w, StreamSync, viewsOf(engine.Requests()))
			case StreamNotification:
				h.writeSSE(w, StreamNotification, ev.Notification)
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("encode stream event", slog.Any("error", err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// CalendarEvent is the calendar projection of a request.
type CalendarEvent struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	Type         Kind      `json:"type"`
	Status       Status    `json:"status"`
	EmployeeName string    `json:"employeeName"`
}

// handleCalendar projects the viewer's scope onto calendar events. Rejected
// requests do not occupy calendar days.
func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	viewer, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	engine, err := h.manager.Engine(r.Context(), viewer)
	if err != nil {
		h.logger.Error("open engine", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Store Unavailable", "")
		return
	}
	var events []CalendarEvent
	for _, req := range engine.Requests() {
		if req.Status == StatusRejected {
			continue
		}
		events = append(events, CalendarEvent{
			ID:           req.ID,
			Title:        calendarTitle(req),
			Start:        req.StartDate.UTC().Format(DateLayout),
			End:          req.EndDate.UTC().Format(DateLayout),
			Type:         req.Kind,
			Status:       req.Status,
			EmployeeName: req.EmployeeName,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": events})
}

func calendarTitle(req Request) string {
	if req.Kind == KindVacation {
		return "Férias — " + req.EmployeeName
	}
	return "Ausência — " + req.EmployeeName
}

func (h *Handler) recordDecision(r *http.Request, ref, actor uuid.UUID, action shared.DecisionAction, note string) {
	if h.recorder == nil {
		return
	}
	entry := shared.DecisionEntry{RefID: ref, ActorID: actor, Action: action, Note: note}
	if err := h.recorder.Record(r.Context(), entry); err != nil {
		h.logger.Warn("record decision entry", slog.Any("error", err))
	}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("field %s failed on %s", verrs[0].Field(), verrs[0].Tag())
	}
	return "invalid payload"
}
