package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"lastbite/internal/stores/service"
	apperrors "lastbite/pkg/errors"
	httputil "lastbite/pkg/http"
	"lastbite/pkg/logger"
	"lastbite/pkg/middleware"
	"lastbite/pkg/model"
)

type StoreHandler struct {
	service service.StoreService
	log     *logger.Logger
}

func NewStoreHandler(service service.StoreService, log *logger.Logger) *StoreHandler {
	return &StoreHandler{
		service: service,
		log:     log,
	}
}

func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var store model.Store
	if err := json.NewDecoder(r.Body).Decode(&store); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	actorID := middleware.UserIDFromContext(r.Context())
	if err := h.service.Create(r.Context(), actorID, &store); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, store); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *StoreHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	store, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, store); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StoreHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	stores, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, stores, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.StoreUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	actorID := middleware.UserIDFromContext(r.Context())
	if err := h.service.Update(r.Context(), actorID, id, &updates); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	actorID := middleware.UserIDFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actorID, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *StoreHandler) Nearby(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lng, lngOK, err := httputil.ExtractFloat(r, "lng")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	lat, latOK, err := httputil.ExtractFloat(r, "lat")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if !lngOK || !latOK {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Both 'lng' and 'lat' query parameters are required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()

	radius := 0
	if s := query.Get("radius"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid radius parameter: "+s)); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		radius = v
	}

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid limit parameter: "+s)); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		limit = v
	}

	stores, err := h.service.GetNearby(r.Context(), lng, lat, radius, limit)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stores); err != nil {
		h.log.Error("failed to write success response", "handler", "Nearby", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StoreHandler) Stats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	actorID := middleware.UserIDFromContext(r.Context())
	stats, err := h.service.GetStats(r.Context(), actorID, id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Stats", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StoreHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/stores", h.Create)
	router.GET("/api/v1/stores", h.GetAll)
	router.GET("/api/v1/stores/nearby", h.Nearby)
	router.GET("/api/v1/stores/id/:id", h.GetByID)
	router.PATCH("/api/v1/stores/id/:id", h.Update)
	router.DELETE("/api/v1/stores/id/:id", h.Delete)
	router.GET("/api/v1/stores/id/:id/stats", h.Stats)
}
