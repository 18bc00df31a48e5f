package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gradebook/apiserver/internal/apperror"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/services"
	"github.com/gradebook/apiserver/types"
)

// ItemHandler serves classes and their partials and activities.
type ItemHandler struct {
	classes *services.ClassService
	log     logging.Logger
}

func NewItemHandler(classes *services.ClassService, log logging.Logger) *ItemHandler {
	return &ItemHandler{classes: classes, log: log}
}

// ItemRouter registers class routes on the given router. Deleting a class
// goes through the optional middleware; the service decides whether an
// anonymous caller may do it.
func ItemRouter(r chi.Router, classes *services.ClassService, authn *Authenticator, log logging.Logger) {
	handler := NewItemHandler(classes, log)

	r.With(authn.Require).Get("/", handler.List)
	r.Route("/{itemID}", func(r chi.Router) {
		r.With(authn.Require).Get("/", handler.Get)
		r.With(authn.Require).Put("/", handler.Put)
		r.With(authn.Optional).Delete("/", handler.Delete)

		r.Group(func(r chi.Router) {
			r.Use(authn.Require)
			r.Post("/partials", handler.UpsertPartial)
			r.Delete("/partials/{partialName}", handler.DeletePartial)
			r.Post("/partials/{partialName}/activities", handler.AddActivity)
			r.Delete("/partials/{partialName}/activities/{index}", handler.DeleteActivity)
		})
	})
}

type ClassRequest struct {
	Name     string          `json:"name" validate:"notblank"`
	Price    float64         `json:"price"`
	IsOffer  bool            `json:"is_offer"`
	Partials []types.Partial `json:"partials" validate:"dive"`
}

type ListResponse struct {
	Total int           `json:"total"`
	Items []types.Class `json:"items"`
}

type DeleteClassResponse struct {
	Message string `json:"message"`
	ItemID  int    `json:"item_id"`
}

type PartialResponse struct {
	Partial types.Partial `json:"partial"`
}

type ActivityResponse struct {
	Activity types.Activity `json:"activity"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	items, err := h.classes.List(r.Context(), user)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	if items == nil {
		items = []types.Class{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Total: len(items), Items: items})
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	user, _ := userFromContext(r.Context())

	class, err := h.classes.Get(r.Context(), user, itemID)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

// Put creates or overwrites a class.
func (h *ItemHandler) Put(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	var req ClassRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, r, h.log, err)
		return
	}
	user, _ := userFromContext(r.Context())

	class, err := h.classes.Upsert(r.Context(), user, itemID, services.ClassInput{
		Name:     req.Name,
		Price:    req.Price,
		IsOffer:  req.IsOffer,
		Partials: req.Partials,
	})
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}

	var caller *types.User
	if user, ok := userFromContext(r.Context()); ok {
		caller = &user
	}

	class, err := h.classes.Delete(r.Context(), caller, itemID)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteClassResponse{
		Message: fmt.Sprintf("class '%s' deleted", class.Name),
		ItemID:  itemID,
	})
}

func (h *ItemHandler) UpsertPartial(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	var req types.Partial
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, r, h.log, err)
		return
	}
	user, _ := userFromContext(r.Context())

	partial, err := h.classes.UpsertPartial(r.Context(), user, itemID, req)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PartialResponse{Partial: partial})
}

func (h *ItemHandler) DeletePartial(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	name := pathParam(r, "partialName")
	user, _ := userFromContext(r.Context())

	if err := h.classes.DeletePartial(r.Context(), user, itemID, name); err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("partial '%s' deleted", name)})
}

func (h *ItemHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	var req types.Activity
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, r, h.log, err)
		return
	}
	user, _ := userFromContext(r.Context())

	activity, err := h.classes.AddActivity(r.Context(), user, itemID, pathParam(r, "partialName"), req)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityResponse{Activity: activity})
}

func (h *ItemHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		renderError(w, r, h.log, apperror.NewValidationError("invalid activity index", err))
		return
	}
	user, _ := userFromContext(r.Context())

	if err := h.classes.DeleteActivity(r.Context(), user, itemID, pathParam(r, "partialName"), index); err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("activity %d deleted", index)})
}
