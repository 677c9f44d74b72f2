package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/render"
)

type reloadRequest struct {
	Secret string `json:"secret"`
	What   string `json:"what"`
	Note   string `json:"note"`
}

type reloadResponse struct {
	OK       bool `json:"ok"`
	Products int  `json:"products"`
	Promos   int  `json:"promos"`
}

type lowStockRequest struct {
	Secret string                `json:"secret"`
	Items  []render.LowStockItem `json:"items"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type timelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type timelineResponse struct {
	OrderID string          `json:"order_id"`
	Events  []timelineEvent `json:"events"`
}

// authorized сверяет секрет из тела или из заголовка X-Admin-Secret.
func (s *Server) authorized(r *http.Request, bodySecret string) bool {
	if secretEqual(bodySecret, s.adminSecret) {
		return true
	}
	return secretEqual(r.Header.Get(adminHeader), s.adminSecret)
}

func reloadParts(what string) (catalog.Part, error) {
	switch strings.ToLower(strings.TrimSpace(what)) {
	case "", "all":
		return catalog.PartAll, nil
	case "produk":
		return catalog.PartProducts, nil
	case "promo":
		return catalog.PartPromos, nil
	default:
		return 0, fmt.Errorf("unknown reload target %q", what)
	}
}

func (s *Server) adminReload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	decodeErr := decodeJSON(w, r, &req)
	if !s.authorized(r, req.Secret) {
		writeText(w, http.StatusUnauthorized, "forbidden")
		return
	}
	if decodeErr != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	parts, err := reloadParts(req.What)
	if err != nil {
		writeJSON(w, http.StatusOK, errorBody{Error: err.Error()})
		return
	}

	err = s.catalog.Reload(r.Context(), parts)
	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.RecordCatalogReload(result)
	}
	if err != nil {
		s.logger.WithError(err).WithField("what", req.What).Error("admin reload failed")
		writeJSON(w, http.StatusOK, errorBody{Error: err.Error()})
		return
	}

	if note := strings.TrimSpace(req.Note); note != "" {
		if err := s.notifyAdmins(r.Context(), render.ReloadRequested(note)); err != nil {
			s.logger.WithError(err).Warn("reload note not delivered to every admin")
		}
	}

	stats := s.catalog.Stats()
	s.logger.WithField("products", stats.Products).WithField("promos", stats.Promos).Info("catalog reloaded by admin request")
	writeJSON(w, http.StatusOK, reloadResponse{OK: true, Products: stats.Products, Promos: stats.Promos})
}

func (s *Server) adminLowStock(w http.ResponseWriter, r *http.Request) {
	var req lowStockRequest
	decodeErr := decodeJSON(w, r, &req)
	if !s.authorized(r, req.Secret) {
		writeText(w, http.StatusUnauthorized, "forbidden")
		return
	}
	if decodeErr != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusOK, okResponse{OK: true})
		return
	}

	if err := s.notifyAdmins(r.Context(), render.LowStock(req.Items)); err != nil {
		s.logger.WithError(err).Warn("low stock alert failed")
		writeJSON(w, http.StatusOK, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) adminTimeline(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeText(w, http.StatusUnauthorized, "forbidden")
		return
	}

	orderID := chi.URLParam(r, "id")
	events, err := s.orders.Timeline(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("timeline lookup failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "timeline unavailable"})
		return
	}
	if len(events) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "order not found"})
		return
	}

	resp := timelineResponse{OrderID: orderID, Events: make([]timelineEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, timelineEvent{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	writeJSON(w, http.StatusOK, resp)
}
