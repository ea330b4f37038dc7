package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dimasraya/live-orders/internal/catalog"
	"github.com/dimasraya/live-orders/internal/inbound"
	"github.com/dimasraya/live-orders/internal/ledger"
	"github.com/dimasraya/live-orders/internal/pass"
	"github.com/dimasraya/live-orders/internal/source"
)

type Handler struct {
	Runner      *pass.Runner
	Ledger      *ledger.Store
	Catalog     *catalog.Store
	Metrics     http.Handler
	VerifyToken string
}

type runPassReq struct {
	Mode string `json:"mode"` // incremental (default) | rebuild
}

type listingReq struct {
	Category   string `json:"category"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Stock      int    `json:"stock"`
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/webhook", h.verifyWebhook)
	r.Post("/webhook", h.receiveWebhook)
	r.Post("/posts/{postID}/passes", h.runPass)
	r.Get("/posts/{postID}/orders", h.listOrders)
	r.Get("/posts/{postID}/catalog", h.listCatalog)
	r.Put("/posts/{postID}/catalog/{code}", h.upsertListing)
	r.Delete("/posts/{postID}/catalog/{code}", h.deleteListing)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Platform subscription handshake: echo hub.challenge when the verify
// token matches.
func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.VerifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}

func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}
	evs, err := inbound.Normalize(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	for _, ev := range evs {
		// Single-comment incremental pass. A concurrent full pass will pick
		// the comment up anyway, so a lease conflict here is logged, not
		// returned: the platform retries delivery on non-200.
		if _, err := h.Runner.RunComments(ctx, ev.PostID, []source.Comment{ev.Comment}, ledger.ModeIncremental); err != nil && !errors.Is(err, pass.ErrLeaseConflict) {
			log.Printf("webhook pass failed: post=%s comment=%s: %v", ev.PostID, ev.Comment.ID, err)
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))
}

func (h *Handler) runPass(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if postID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing post id"})
		return
	}

	var req runPassReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	mode := ledger.ModeIncremental
	switch req.Mode {
	case "", string(ledger.ModeIncremental):
	case string(ledger.ModeRebuild):
		mode = ledger.ModeRebuild
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid mode"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	sum, err := h.Runner.Run(ctx, postID, mode)
	if errors.Is(err, pass.ErrLeaseConflict) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Ledger.ListByPost(ctx, chi.URLParam(r, "postID"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ls, err := h.Catalog.Snapshot(ctx, chi.URLParam(r, "postID"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *Handler) upsertListing(w http.ResponseWriter, r *http.Request) {
	var req listingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	cat := catalog.Category(req.Category)
	if cat != catalog.CategoryExclusive && cat != catalog.CategoryLimited {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Catalog.Upsert(ctx, chi.URLParam(r, "postID"), catalog.Listing{
		Code:       chi.URLParam(r, "code"),
		Category:   cat,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Catalog.Delete(ctx, chi.URLParam(r, "postID"), chi.URLParam(r, "code")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
