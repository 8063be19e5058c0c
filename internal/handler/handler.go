// Package handler exposes the dispatch services over an operator HTTP API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/gathering-dispatch/internal/middleware"
	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/repository"
	"github.com/popeskul/gathering-dispatch/internal/scheduler"
	"github.com/popeskul/gathering-dispatch/internal/service"
)

const (
	errorCodeSchedulerAlreadyRunning = "SCHEDULER_ALREADY_RUNNING"
	errorCodeSchedulerNotRunning     = "SCHEDULER_NOT_RUNNING"
	errorCodeInvalidRequest          = "INVALID_REQUEST"
	errorCodeNotFound                = "NOT_FOUND"
	errorCodeMissingAddress          = "MISSING_RECIPIENT_ADDRESS"
	errorCodeTemplateInactive        = "TEMPLATE_INACTIVE"
	errorCodeChannelNotConfigured    = "CHANNEL_NOT_CONFIGURED"
	errorCodeReconcileInProgress     = "RECONCILE_IN_PROGRESS"
)

const (
	errorMessageSchedulerAlreadyRunning = "Scheduler is already running"
	errorMessageSchedulerNotRunning     = "Scheduler is not running"
	errorMessageFailedToStartScheduler  = "Failed to start scheduler"
	errorMessageFailedToStopScheduler   = "Failed to stop scheduler"
	errorMessageInvalidBody             = "Request body must be valid JSON"
	errorMessageNotFound                = "Resource not found"
	errorMessageReconcileInProgress     = "Reconciliation is already in progress"
)

const (
	schedulerMessageStarted = "Scheduler started successfully"
	schedulerMessageStopped = "Scheduler stopped successfully"
)

type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	r.Route("/scheduler", func(r chi.Router) {
		r.Post("/start", h.StartScheduler)
		r.Post("/stop", h.StopScheduler)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Post("/", h.CreateTemplate)
		r.Get("/{id}", h.GetTemplate)
		r.Put("/{id}", h.UpdateTemplate)
	})

	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.ListMessages)
		r.Post("/send", h.SendMessages)
		r.Post("/dispatch", h.DispatchMessage)
		r.Post("/reconcile", h.ReconcileMessages)
		r.Get("/stats", h.GetMessageStats)
		r.Get("/external/{externalID}", h.GetMessageByExternalID)
		r.Get("/{id}", h.GetMessage)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth(r.Context())

	response := HealthResponse{
		Status:               health.Status,
		Timestamp:            time.Now().UTC(),
		SchedulerStatus:      optional(health.SchedulerStatus),
		DatabaseStatus:       optional(health.DatabaseStatus),
		RedisStatus:          optional(health.RedisStatus),
		Provider:             optional(health.Provider),
		CircuitBreakerStatus: optional(health.CircuitBreakerStatus),
		CircuitBreakerState:  optional(health.CircuitBreakerState),
	}

	// Degraded still answers 200 so monitoring can tell it apart from down.
	if health.Status == service.StatusUnhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}

func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	err := h.service.Scheduler.Start()
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerAlreadyRunning, errorMessageSchedulerAlreadyRunning)
			return
		}

		middleware.RequestLogger(r.Context(), h.logger).Error("Failed to start scheduler",
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToStartScheduler)
		return
	}

	render.JSON(w, r, SchedulerResponse{Status: "started", Message: schedulerMessageStarted})
}

func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	err := h.service.Scheduler.Stop()
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerNotRunning, errorMessageSchedulerNotRunning)
			return
		}

		middleware.RequestLogger(r.Context(), h.logger).Error("Failed to stop scheduler",
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToStopScheduler)
		return
	}

	render.JSON(w, r, SchedulerResponse{Status: "stopped", Message: schedulerMessageStopped})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	templates, err := h.service.Templates.ListTemplates(r.Context(), activeOnly)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to list templates")
		return
	}

	resp := TemplateListResponse{Templates: make([]TemplateResponse, 0, len(templates))}
	for _, tpl := range templates {
		resp.Templates = append(resp.Templates, newTemplateResponse(tpl))
	}
	render.JSON(w, r, resp)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}

	tpl, err := h.service.Templates.CreateTemplate(r.Context(), req.input())
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to create template")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newTemplateResponse(tpl))
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	tpl, err := h.service.Templates.GetTemplate(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to get template")
		return
	}
	render.JSON(w, r, newTemplateResponse(tpl))
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}

	tpl, err := h.service.Templates.UpdateTemplate(r.Context(), id, req.input())
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to update template")
		return
	}
	render.JSON(w, r, newTemplateResponse(tpl))
}

// SendMessages sends a template to several people. Recipients without an
// address for the channel are counted as skipped.
func (h *Handler) SendMessages(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}
	if req.TemplateID <= 0 || len(req.PersonIDs) == 0 {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "template_id and person_ids are required")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.PersonIDs))
	for _, raw := range req.PersonIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid person id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	result, err := h.service.Dispatch.SendTemplate(r.Context(), req.TemplateID, ids, req.EventID)
	if err != nil && result == nil {
		h.handleServiceError(w, r, err, "Failed to send messages")
		return
	}

	resp := newBulkResponse(result)
	if err != nil {
		middleware.RequestLogger(r.Context(), h.logger).Warn("Bulk send interrupted",
			zap.Int("attempted", result.Attempted),
			zap.Error(err))
		resp.Interrupted = true
	}
	render.JSON(w, r, resp)
}

func (h *Handler) DispatchMessage(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}
	personID, err := uuid.Parse(req.PersonID)
	if err != nil || req.TemplateID <= 0 {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "template_id and a valid person_id are required")
		return
	}

	log, err := h.service.Dispatch.SendOne(r.Context(), req.TemplateID, personID, req.EventID)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to dispatch message")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newMessageLogResponse(log))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, ok := h.queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	result, err := h.service.Logs.ListLogs(r.Context(), service.LogQuery{
		Status:  models.MessageStatus(q.Get("status")),
		Channel: models.Channel(q.Get("channel")),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to retrieve messages")
		return
	}

	render.JSON(w, r, MessageListResponse{
		Messages:   newMessageLogResponses(result.Logs),
		Pagination: result.Pagination,
	})
}

func (h *Handler) GetMessageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Logs.GetStats(r.Context(), time.Now())
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to get message stats")
		return
	}
	render.JSON(w, r, stats)
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	log, err := h.service.Logs.GetLog(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to get message")
		return
	}
	render.JSON(w, r, newMessageLogResponse(log))
}

func (h *Handler) GetMessageByExternalID(w http.ResponseWriter, r *http.Request) {
	log, err := h.service.Logs.FindByExternalID(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to get message")
		return
	}
	render.JSON(w, r, newMessageLogResponse(log))
}

func (h *Handler) ReconcileMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}
	hours, ok := h.queryInt(w, r, "hours")
	if !ok {
		return
	}

	result, err := h.service.Reconcile.Reconcile(r.Context(), limit, hours)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to reconcile messages")
		return
	}
	render.JSON(w, r, result)
}

// handleServiceError maps service errors onto HTTP answers. Anything not
// recognised is logged and reported as an internal error.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, errorMessageNotFound)
	case errors.Is(err, service.ErrInvalidInput):
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, err.Error())
	case errors.Is(err, service.ErrMissingRecipientAddress):
		h.sendError(w, r, http.StatusUnprocessableEntity, errorCodeMissingAddress, err.Error())
	case errors.Is(err, service.ErrTemplateInactive):
		h.sendError(w, r, http.StatusUnprocessableEntity, errorCodeTemplateInactive, err.Error())
	case errors.Is(err, service.ErrChannelNotConfigured):
		h.sendError(w, r, http.StatusServiceUnavailable, errorCodeChannelNotConfigured, err.Error())
	case errors.Is(err, service.ErrReconcileInProgress):
		h.sendError(w, r, http.StatusConflict, errorCodeReconcileInProgress, errorMessageReconcileInProgress)
	case errors.Is(err, context.DeadlineExceeded):
		h.sendError(w, r, http.StatusGatewayTimeout, middleware.ErrorCodeRequestTimeout, middleware.ErrorMessageRequestTimeout)
	default:
		middleware.RequestLogger(r.Context(), h.logger).Error(message,
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, message)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	middleware.WriteError(w, r, statusCode, errorCode, message)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// queryInt reads an optional non-negative integer query parameter; absent
// means 0.
func (h *Handler) queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
