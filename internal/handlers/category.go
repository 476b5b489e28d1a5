package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/schedule-api/internal/authz"
	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/repository"
)

type CategoryHandler struct {
	categories repository.CategoryRepository
	events     repository.EventRepository
	validator  *Validator
	logger     zerolog.Logger
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Color       string `json:"color" validate:"required,len=7,hexcolor"`
	Description string `json:"description" validate:"max=500"`
	IsDefault   bool   `json:"is_default"`
}

func NewCategoryHandler(categories repository.CategoryRepository, events repository.EventRepository, validator *Validator, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		events:     events,
		validator:  validator,
		logger:     logger.With().Str("handler", "category").Logger(),
	}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	categories, err := h.categories.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list categories")
		writeError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	categoryID, ok := pathID(w, r, "categoryID", "category")
	if !ok {
		return
	}

	category, err := h.categories.Get(r.Context(), userID, categoryID)
	if err != nil {
		h.writeLookupError(w, err, categoryID, "failed to load category")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"category": category})
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categories.Create(r.Context(), models.Category{
		UserID:      userID,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create category")
		writeError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Category created successfully", "category": category})
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	categoryID, ok := pathID(w, r, "categoryID", "category")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categories.Update(r.Context(), models.Category{
		ID:          categoryID,
		UserID:      userID,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		h.writeLookupError(w, err, categoryID, "failed to update category")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Category updated successfully", "category": category})
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	categoryID, ok := pathID(w, r, "categoryID", "category")
	if !ok {
		return
	}

	inUse, err := h.events.CountByCategory(r.Context(), userID, categoryID)
	if err != nil {
		h.logger.Error().Err(err).Str("category_id", categoryID).Msg("failed to count category events")
		writeError(w, http.StatusInternalServerError, "Failed to delete category")
		return
	}
	if inUse > 0 {
		writeError(w, http.StatusConflict, "Cannot delete category that has events")
		return
	}

	if err := h.categories.Delete(r.Context(), userID, categoryID); err != nil {
		h.writeLookupError(w, err, categoryID, "failed to delete category")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted successfully"})
}

func (h *CategoryHandler) writeLookupError(w http.ResponseWriter, err error, categoryID, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	h.logger.Error().Err(err).Str("category_id", categoryID).Msg(msg)
	writeError(w, http.StatusInternalServerError, "Category request failed")
}
