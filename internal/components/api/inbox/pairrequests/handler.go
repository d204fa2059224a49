// Package pairrequests implements the pending pair request endpoints.
package pairrequests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MahdiBaghbani/pairinbox-go/internal/components/api"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/panel"
	"github.com/MahdiBaghbani/pairinbox-go/internal/components/pairing/requests"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Queue is the part of requests.Queue used by the handlers.
type Queue interface {
	Submit(requesterID, displayName string, receivedAt time.Time) error
	Lookup(requesterID string) (requests.PendingRequest, bool)
	TTL() time.Duration
}

// Panel is the part of panel.Panel used by the handlers.
type Panel interface {
	Frame(ctx context.Context, now time.Time) panel.Frame
	Respond(requesterID string, accepted bool) (bool, error)
	SetOpen(ctx context.Context, open bool) error
}

// SubmitRequest is the body of POST /api/pair-requests.
type SubmitRequest struct {
	RequesterID string     `json:"requesterId" validate:"required,max=128"`
	DisplayName string     `json:"displayName" validate:"required,max=64"`
	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`
}

// Validate applies the field rules of a submission. Failures wrap
// requests.ErrInvalidRequest.
func (req SubmitRequest) Validate() error {
	if err := validate.Struct(req); err != nil {
		_, msg := describe(err)
		return fmt.Errorf("%w: %s", requests.ErrInvalidRequest, msg)
	}
	return nil
}

// PendingRequestView is the public view of a queued request.
type PendingRequestView struct {
	RequesterID string          `json:"requesterId"`
	DisplayName string          `json:"displayName"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Status      requests.Status `json:"status"`
}

// ResolveResponse is returned by the accept and deny endpoints.
type ResolveResponse struct {
	RequesterID string          `json:"requesterId"`
	Status      requests.Status `json:"status"`
}

// SectionRequest is the body of PUT /api/pair-requests/section.
type SectionRequest struct {
	Open *bool `json:"open" validate:"required"`
}

// SectionResponse echoes the stored section state.
type SectionResponse struct {
	Open bool `json:"open"`
}

// Handler serves the pair request API.
type Handler struct {
	queue Queue
	panel Panel
	clock func() time.Time
	log   *slog.Logger
}

// NewHandler creates a pair request handler. A nil clock uses time.Now.
func NewHandler(q Queue, p Panel, clock func() time.Time, log *slog.Logger) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		queue: q,
		panel: p,
		clock: clock,
		log:   logutil.NoopIfNil(log),
	}
}

// HandleList handles GET /api/pair-requests.
// Runs one render tick: due requests expire before the frame is built.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.panel.Frame(r.Context(), h.clock()))
}

// HandleSubmit handles POST /api/pair-requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decode(w, r, &req) {
		return
	}

	var delivered time.Time
	if req.ReceivedAt != nil {
		delivered = *req.ReceivedAt
	}
	receivedAt, err := requests.NormalizeReceivedAt(delivered, h.clock())
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, err.Error())
		return
	}

	err = h.queue.Submit(req.RequesterID, req.DisplayName, receivedAt)
	switch {
	case err == nil:
	case errors.Is(err, requests.ErrDuplicateRequest):
		api.WriteConflict(w, api.ReasonDuplicateRequest, "a pair request from this requester is already pending")
		return
	case errors.Is(err, requests.ErrInvalidRequest):
		api.WriteBadRequest(w, api.ReasonInvalidField, err.Error())
		return
	default:
		appctx.LoggerOr(r.Context(), h.log).Error("failed to queue pair request", "requester_id", req.RequesterID, "error", err)
		api.WriteInternalError(w, "failed to queue pair request")
		return
	}

	api.WriteJSON(w, http.StatusCreated, PendingRequestView{
		RequesterID: req.RequesterID,
		DisplayName: req.DisplayName,
		ReceivedAt:  receivedAt,
		ExpiresAt:   receivedAt.Add(h.queue.TTL()),
		Status:      requests.StatusPending,
	})
}

// HandleAccept handles POST /api/pair-requests/{requesterId}/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// HandleDeny handles POST /api/pair-requests/{requesterId}/deny.
func (h *Handler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, accepted bool) {
	requesterID := chi.URLParam(r, "requesterId")
	if requesterID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "requesterId is required")
		return
	}

	log := appctx.LoggerOr(r.Context(), h.log)
	ok, err := h.panel.Respond(requesterID, accepted)
	if err != nil {
		log.Error("failed to resolve pair request", "requester_id", requesterID, "error", err)
		api.WriteInternalError(w, "failed to resolve pair request")
		return
	}
	if !ok {
		// Lost the race against expiry or a second click.
		log.Debug("pair request no longer pending", "requester_id", requesterID, "accepted", accepted)
		api.WriteNotFound(w, "pair request is no longer pending")
		return
	}

	api.WriteJSON(w, http.StatusOK, ResolveResponse{
		RequesterID: requesterID,
		Status:      requests.StatusFor(accepted),
	})
}

// HandleGet handles GET /api/pair-requests/{requesterId}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requesterID := chi.URLParam(r, "requesterId")
	req, ok := h.queue.Lookup(requesterID)
	if !ok {
		api.WriteNotFound(w, "pair request not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, PendingRequestView{
		RequesterID: req.RequesterID,
		DisplayName: req.DisplayName,
		ReceivedAt:  req.ReceivedAt,
		ExpiresAt:   req.ReceivedAt.Add(h.queue.TTL()),
		Status:      requests.StatusPending,
	})
}

// HandleSection handles PUT /api/pair-requests/section.
func (h *Handler) HandleSection(w http.ResponseWriter, r *http.Request) {
	var req SectionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.panel.SetOpen(r.Context(), *req.Open); err != nil {
		appctx.LoggerOr(r.Context(), h.log).Error("failed to store section state", "error", err)
		api.WriteInternalError(w, "failed to store section state")
		return
	}
	api.WriteJSON(w, http.StatusOK, SectionResponse{Open: *req.Open})
}

// decode reads and validates a JSON body, writing the error response itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		reason, msg := describe(err)
		api.WriteBadRequest(w, reason, msg)
		return false
	}
	return true
}

func describe(err error) (string, string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return api.ReasonBadRequest, "invalid request body"
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return api.ReasonMissingField, fe.Field() + " is required"
	}
	if fe.Param() != "" {
		return api.ReasonInvalidField, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return api.ReasonInvalidField, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
