// Package api is the HTTP surface over the envelope orchestrator.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentfold/esign/internal/orchestrator"
	"github.com/rentfold/esign/pkg/auth"
	"github.com/rentfold/esign/pkg/httpx"
)

type Handler struct {
	orc       *orchestrator.Orchestrator
	validator *auth.Validator
	limiters  *ingressLimiters
}

func NewHandler(orc *orchestrator.Orchestrator, validator *auth.Validator) *Handler {
	return &Handler{orc: orc, validator: validator, limiters: newIngressLimiters()}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Vendor-authenticated, not user-authenticated.
	r.Post("/webhooks/{provider}", h.handleWebhook)

	r.Route("/esign", func(api chi.Router) {
		api.Use(auth.Middleware(h.validator))

		api.Post("/envelopes", h.handleCreate)
		api.Get("/envelopes", h.handleList)
		api.Get("/envelopes/{envelope_id}", h.handleGet)
		api.Post("/envelopes/{envelope_id}/send", h.handleSend)
		api.Post("/envelopes/{envelope_id}/void", h.handleVoid)
		api.Post("/envelopes/{envelope_id}/refresh", h.handleRefresh)
		api.Get("/envelopes/{envelope_id}/signers/{signer_id}/signing-url", h.handleSigningURL)
		api.Get("/envelopes/{envelope_id}/documents/{document_id}", h.handleDownload)
	})
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	var req orchestrator.CreateRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	result, err := h.orc.Create(r.Context(), req, actor)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id":   httpx.NewRequestID(),
		"envelope":     result.Envelope,
		"signing_urls": result.SigningURLs,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	envs, err := h.orc.List(r.Context(), actor)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "envelopes": envs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	env, err := h.orc.Get(r.Context(), chi.URLParam(r, "envelope_id"), actor)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "envelope": env})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	env, err := h.orc.Send(r.Context(), chi.URLParam(r, "envelope_id"), actor)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "envelope": env})
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	env, err := h.orc.Void(r.Context(), chi.URLParam(r, "envelope_id"), actor, req.Reason)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "envelope": env})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	id := chi.URLParam(r, "envelope_id")
	// Authorization first: refresh reveals signer state.
	if _, err := h.orc.Get(r.Context(), id, actor); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	env, err := h.orc.RefreshStatus(r.Context(), id)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "envelope": env})
}

func (h *Handler) handleSigningURL(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	url, err := h.orc.SigningURL(r.Context(),
		chi.URLParam(r, "envelope_id"), chi.URLParam(r, "signer_id"),
		actor, r.URL.Query().Get("return_url"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	// Point-in-time URL, valid for a bounded window. Never persisted.
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "signing_url": url})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	data, err := h.orc.DownloadDocument(r.Context(),
		chi.URLParam(r, "envelope_id"), chi.URLParam(r, "document_id"), actor)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	w.Header().Set("content-type", "application/octet-stream")
	w.WriteHeader(200)
	_, _ = w.Write(data)
}
