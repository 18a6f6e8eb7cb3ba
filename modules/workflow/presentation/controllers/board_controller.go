package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/northbeam/capitalgate/modules/workflow/domain/board"
	"github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/httpapi"
)

type BoardController struct {
	board    *services.BoardService
	basePath string
}

func NewBoardController(b *services.BoardService) *BoardController {
	return &BoardController{
		board:    b,
		basePath: "/api/board",
	}
}

func (c *BoardController) Key() string {
	return c.basePath
}

func (c *BoardController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/cards", c.List).Methods(http.MethodGet)
	router.HandleFunc("/cards/{cardId}/tasks/{taskId}", c.UpdateTask).Methods(http.MethodPut)
	router.HandleFunc("/cards/{cardId}/characteristics-updated", c.MarkCharacteristics).Methods(http.MethodPost)
}

func (c *BoardController) List(w http.ResponseWriter, r *http.Request) {
	cards, err := c.board.ListCards(r.Context())
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cards)
}

type updateTaskRequest struct {
	Status board.TaskStatus `json:"status"`
}

func (c *BoardController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body updateTaskRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return
	}
	card, err := c.board.UpdateTaskStatus(r.Context(), vars["cardId"], vars["taskId"], body.Status)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, card)
}

func (c *BoardController) MarkCharacteristics(w http.ResponseWriter, r *http.Request) {
	card, err := c.board.MarkCharacteristicsUpdated(r.Context(), mux.Vars(r)["cardId"])
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, card)
}
