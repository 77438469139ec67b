package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/signclips/hub/internal/api/response"
	"github.com/signclips/hub/internal/api/validation"
	"github.com/signclips/hub/internal/models"
)

// SearchService runs a video search. It never fails; degraded stages yield fewer results.
type SearchService interface {
	Search(ctx context.Context, q models.SearchQuery) []models.RankedResult
}

// SearchHandler handles HTTP requests for video search.
type SearchHandler struct {
	service SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchRequest is the body of POST /v1/videos/search and the query of GET /v1/videos/search.
type SearchRequest struct {
	Query          string  `json:"query"                    form:"query"          validate:"max=500,no_null_bytes"`
	Region         *string `json:"region,omitempty"         form:"region"         validate:"omitempty,region"`
	Limit          int     `json:"limit,omitempty"          form:"limit"          validate:"gte=0"`
	Conversational bool    `json:"conversational,omitempty" form:"conversational"`
}

// SearchResponse wraps the ranked results.
type SearchResponse struct {
	Results []models.RankedResult `json:"results"`
}

// Search handles POST /v1/videos/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	h.search(w, r, req)
}

// SearchGet handles GET /v1/videos/search?query=&region=&limit=&conversational=.
func (h *SearchHandler) SearchGet(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	if err := validation.DecodeQueryParams(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid query parameters")

		return
	}

	h.search(w, r, req)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, req SearchRequest) {
	if req.Region != nil && strings.TrimSpace(*req.Region) == "" {
		req.Region = nil
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	results := h.service.Search(r.Context(), models.SearchQuery{
		Query:          req.Query,
		Region:         req.Region,
		Limit:          req.Limit,
		Conversational: req.Conversational,
	})

	response.RespondJSON(w, http.StatusOK, SearchResponse{Results: results})
}
