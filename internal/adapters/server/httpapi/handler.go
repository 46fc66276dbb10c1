// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/cardflow/internal/adapters/server/common"
	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 8 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service      common.CardService
	defaultActor string
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter. Requests without an actor are attributed to defaultActor.
func NewHandler(service common.CardService, defaultActor string) *Handler {
	return &Handler{
		service:      service,
		defaultActor: common.ResolveActor(defaultActor, "system"),
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "card service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	segs := strings.Split(path, "/")
	switch segs[0] {
	case "boards":
		h.routeBoards(w, r, segs[1:])
	case "categories":
		h.routeCategories(w, r, segs[1:])
	case "cards":
		h.routeCards(w, r, segs[1:])
	case "checklist":
		h.routeChecklist(w, r, segs[1:])
	default:
		writeNotFound(w)
	}
}

// routeBoards serves `/boards/...`.
func (h *Handler) routeBoards(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.handleListBoards(w, r)
		case http.MethodPost:
			h.handleCreateBoard(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	}
	boardID, ok := parseID(w, segs[0], "board id")
	if !ok {
		return
	}
	switch {
	case len(segs) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleGetBoard(w, r, boardID)
		case http.MethodDelete:
			h.handleDeleteBoard(w, r, boardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case len(segs) == 2 && segs[1] == "categories":
		switch r.Method {
		case http.MethodGet:
			h.handleListCategories(w, r, boardID)
		case http.MethodPost:
			h.handleCreateCategory(w, r, boardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segs) == 2 && segs[1] == "cards":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListBoardCards(w, r, boardID)
	case len(segs) == 3 && segs[1] == "cards" && segs[2] == "unreleased":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListUnreleased(w, r, boardID)
	case len(segs) == 2 && segs[1] == "import":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleImport(w, r, boardID)
	case len(segs) == 2 && segs[1] == "releases":
		switch r.Method {
		case http.MethodGet:
			h.handleListVersions(w, r, boardID)
		case http.MethodPost:
			h.handleRelease(w, r, boardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segs) == 4 && segs[1] == "releases" && segs[3] == "cards":
		versionID, ok := parseID(w, segs[2], "version id")
		if !ok {
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		cards, err := h.service.ListVersionCards(r.Context(), boardID, versionID)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": common.ToCardViews(cards)})
	default:
		writeNotFound(w)
	}
}

// routeCategories serves `/categories/{id}`.
func (h *Handler) routeCategories(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) != 1 {
		writeNotFound(w)
		return
	}
	categoryID, ok := parseID(w, segs[0], "category id")
	if !ok {
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}
	deleted, err := h.service.DeleteCategory(r.Context(), categoryID, h.actor(r, ""))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.DeleteResult{DeletedCards: deleted})
}

// routeCards serves `/cards/...`.
func (h *Handler) routeCards(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCreateCard(w, r)
		return
	}
	if len(segs) == 1 && segs[0] == "archive" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleArchive(w, r)
		return
	}
	cardID, ok := parseID(w, segs[0], "card id")
	if !ok {
		return
	}
	rest := segs[1:]
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			h.handleGetCard(w, r, cardID)
		case http.MethodPatch:
			h.handleUpdateCard(w, r, cardID)
		case http.MethodDelete:
			h.handleDeleteCard(w, r, cardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(rest) == 1 && rest[0] == "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveCard(w, r, cardID)
	case len(rest) == 1 && rest[0] == "completion":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCompletion(w, r, cardID)
	case len(rest) == 1 && rest[0] == "dependencies":
		switch r.Method {
		case http.MethodGet:
			h.handleGetDependencies(w, r, cardID)
		case http.MethodPost:
			h.handleAddDependency(w, r, cardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(rest) == 2 && rest[0] == "dependencies":
		blockerID, ok := parseID(w, rest[1], "blocker id")
		if !ok {
			return
		}
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := h.service.RemoveDependency(r.Context(), blockerID, cardID, h.actor(r, "")); err != nil {
			writeErrorFrom(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(rest) == 1 && rest[0] == "checklist":
		switch r.Method {
		case http.MethodGet:
			h.handleListChecklist(w, r, cardID)
		case http.MethodPost:
			h.handleAddChecklistItem(w, r, cardID)
		case http.MethodDelete:
			if err := h.service.DeleteAllChecklistItems(r.Context(), cardID, h.actor(r, "")); err != nil {
				writeErrorFrom(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
		}
	case len(rest) == 2 && rest[0] == "checklist" && rest[1] == "toggle":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleToggleAll(w, r, cardID)
	case len(rest) == 1 && rest[0] == "activities":
		switch r.Method {
		case http.MethodGet:
			h.handleListActivities(w, r, cardID)
		case http.MethodPost:
			h.handleRecordActivity(w, r, cardID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		writeNotFound(w)
	}
}

// routeChecklist serves `/checklist/{id}/...`.
func (h *Handler) routeChecklist(w http.ResponseWriter, r *http.Request, segs []string) {
	if len(segs) == 0 {
		writeNotFound(w)
		return
	}
	itemID, ok := parseID(w, segs[0], "checklist item id")
	if !ok {
		return
	}
	switch {
	case len(segs) == 1:
		switch r.Method {
		case http.MethodPatch:
			var req common.ChecklistItemRequest
			if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
				writeErrorFrom(w, err)
				return
			}
			item, err := h.service.UpdateChecklistItem(r.Context(), itemID, req.Title, h.actor(r, req.Actor))
			if err != nil {
				writeErrorFrom(w, err)
				return
			}
			writeJSON(w, http.StatusOK, common.ToChecklistItemView(item))
		case http.MethodDelete:
			if err := h.service.DeleteChecklistItem(r.Context(), itemID, h.actor(r, "")); err != nil {
				writeErrorFrom(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
		}
	case len(segs) == 2 && segs[1] == "toggle":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var req common.ActorRequest
		if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		item, err := h.service.ToggleChecklistItem(r.Context(), itemID, h.actor(r, req.Actor))
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, common.ToChecklistItemView(item))
	case len(segs) == 2 && segs[1] == "convert":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var req common.ConvertRequest
		if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		result, err := h.service.ConvertChecklistItem(r.Context(), itemID, req.CategoryID, req.ParentCardID, h.actor(r, req.Actor))
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, common.ConvertView(result))
	default:
		writeNotFound(w)
	}
}

func (h *Handler) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.service.ListBoards(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.BoardView, 0, len(boards))
	for _, b := range boards {
		out = append(out, common.ToBoardView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": out})
}

func (h *Handler) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req common.CreateBoardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, categories, err := h.service.CreateBoard(r.Context(), req.Name)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.BoardCreated{
		Board:      common.ToBoardView(board),
		Categories: common.ToCategoryViews(categories),
	})
}

func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request, boardID int64) {
	board, err := h.service.GetBoard(r.Context(), boardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ToBoardView(board))
}

// handleDeleteBoard serves DELETE `/boards/{id}`; every card goes through the cascade.
func (h *Handler) handleDeleteBoard(w http.ResponseWriter, r *http.Request, boardID int64) {
	deleted, err := h.service.DeleteBoard(r.Context(), boardID, h.actor(r, ""))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.DeleteResult{DeletedCards: deleted})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request, boardID int64) {
	categories, err := h.service.ListCategories(r.Context(), boardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": common.ToCategoryViews(categories)})
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request, boardID int64) {
	var req common.CreateCategoryRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	category, err := h.service.CreateCategory(r.Context(), boardID, req.Name, req.Color)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.ToCategoryView(category))
}

// handleListBoardCards serves GET `/boards/{id}/cards` with dependency flags.
func (h *Handler) handleListBoardCards(w http.ResponseWriter, r *http.Request, boardID int64) {
	flags, err := h.service.ListCardsWithDependencyFlags(r.Context(), boardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": common.ToCardFlagsViews(flags)})
}

func (h *Handler) handleListUnreleased(w http.ResponseWriter, r *http.Request, boardID int64) {
	cards, err := h.service.ListUnreleasedCards(r.Context(), boardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": common.ToCardViews(cards)})
}

// handleImport serves POST `/boards/{id}/import`. Row-level failures come back in the body with 200.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, boardID int64) {
	var req common.ImportRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.service.ImportSheet(r.Context(), boardID, req.Rows, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ImportView(result))
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request, boardID int64) {
	versions, err := h.service.ListVersions(r.Context(), boardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": common.ToVersionViews(versions)})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request, boardID int64) {
	var req common.ReleaseRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	version, cards, err := h.service.ReleaseVersion(r.Context(), boardID, req.Name, req.CardIDs, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.ReleaseView{
		Version: common.ToVersionView(version),
		Cards:   common.ToCardViews(cards),
	})
}

func (h *Handler) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req common.CreateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.CreateCardInput{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		SerialNo:    req.SerialNo,
		DueAt:       req.DueAt,
		Actor:       h.actor(r, req.Actor),
	}
	if strings.TrimSpace(req.Priority) != "" {
		priority, err := domain.ParsePriority(req.Priority)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		in.Priority = priority
	}
	card, err := h.service.CreateCard(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.ToCardView(card))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req common.ArchiveRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	cards, err := h.service.ArchiveCards(r.Context(), req.CardIDs, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": common.ToCardViews(cards)})
}

func (h *Handler) handleGetCard(w http.ResponseWriter, r *http.Request, cardID int64) {
	card, err := h.service.GetCard(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ToCardView(card))
}

func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.UpdateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := common.UpdateCard(r.Context(), h.service, cardID, req, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ToCardView(card))
}

func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request, cardID int64) {
	deleted, err := h.service.DeleteCard(r.Context(), cardID, h.actor(r, ""))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.DeleteResult{DeletedCards: deleted})
}

func (h *Handler) handleMoveCard(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.MoveCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.service.MoveToCategory(r.Context(), cardID, req.CategoryID, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ToCardView(card))
}

func (h *Handler) handleCompletion(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.CompletionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.service.SetCompletion(r.Context(), cardID, req.Checked, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ToCardView(card))
}

func (h *Handler) handleGetDependencies(w http.ResponseWriter, r *http.Request, cardID int64) {
	deps, err := h.service.GetDependencies(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.ToCardDependenciesView(deps))
}

// handleAddDependency serves POST `/cards/{id}/dependencies`; the path card is the blocked side.
func (h *Handler) handleAddDependency(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.DependencyRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	dep, err := h.service.AddDependency(r.Context(), req.BlockerID, cardID, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.ToDependencyView(dep))
}

func (h *Handler) handleListChecklist(w http.ResponseWriter, r *http.Request, cardID int64) {
	items, err := h.service.ListChecklistItems(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": common.ToChecklistItemViews(items)})
}

func (h *Handler) handleAddChecklistItem(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.ChecklistItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.AddChecklistItem(r.Context(), cardID, req.Title, req.DueAt, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.ToChecklistItemView(item))
}

func (h *Handler) handleToggleAll(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.ActorRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	items, err := h.service.ToggleAllChecklistItems(r.Context(), cardID, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": common.ToChecklistItemViews(items)})
}

func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request, cardID int64) {
	activities, err := h.service.ListActivities(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": common.ToActivityViews(activities)})
}

// handleRecordActivity serves POST `/cards/{id}/activities`; type defaults to COMMENT_ADDED.
func (h *Handler) handleRecordActivity(w http.ResponseWriter, r *http.Request, cardID int64) {
	var req common.CommentRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	eventType := domain.EventCommentAdded
	if strings.TrimSpace(req.Type) != "" {
		parsed, err := domain.ParseEventType(req.Type)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		eventType = parsed
	}
	activity, err := h.service.RecordActivity(r.Context(), cardID, eventType, req.Details, h.actor(r, req.Actor))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.ToActivityView(activity))
}

// actor resolves the acting user from the body, then the `actor` query parameter, then the handler default.
func (h *Handler) actor(r *http.Request, fromBody string) string {
	if actor := strings.TrimSpace(fromBody); actor != "" {
		return actor
	}
	return common.ResolveActor(r.URL.Query().Get("actor"), h.defaultActor)
}

// parseID parses one positive path id and writes a 400 when it is malformed.
func parseID(w http.ResponseWriter, raw, label string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    string(domain.KindValidation),
			Message: fmt.Sprintf("invalid %s %q", label, raw),
		})
		return 0, false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps engine errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    string(domain.KindInternal),
			Message: "unknown error",
		})
		return
	}
	status, code := common.ErrorStatus(err)
	apiErr := APIError{Code: code, Message: err.Error()}
	switch {
	case errors.Is(err, domain.ErrOpenBlockers):
		apiErr.Hint = "Complete or remove the blocker cards first."
	case errors.Is(err, domain.ErrIncompleteChecklist):
		apiErr.Hint = "Complete every checklist item first."
	}
	writeJSONError(w, status, apiErr)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    string(domain.KindNotFound),
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
