package v1

import (
	stdjson "encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/http/request"
	"github.com/zcomx/zco-mx/http/response/json"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/util"
	"github.com/zcomx/zco-mx/validator"
)

func (h *Handler) addCreator(w http.ResponseWriter, r *http.Request) {
	var creator model.Creator
	if err := stdjson.NewDecoder(r.Body).Decode(&creator); err != nil {
		json.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.ValidateCreator(&creator); err != nil {
		json.BadRequest(w, err.Error())
		return
	}

	added, err := h.store.AddCreator(&creator)
	if err != nil {
		json.ServerError(w, err)
		return
	}
	json.Created(w, added)
}

func (h *Handler) getCreator(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "id")
	creator, err := h.store.MustGetCreator(&model.FindCreator{ID: &id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.NotFound(w, nil)
			return
		}
		json.ServerError(w, err)
		return
	}
	json.OK(w, creator)
}

func (h *Handler) addBook(w http.ResponseWriter, r *http.Request) {
	var book model.Book
	if err := stdjson.NewDecoder(r.Body).Decode(&book); err != nil {
		json.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.ValidateBook(&book); err != nil {
		json.BadRequest(w, err.Error())
		return
	}
	if !h.store.CheckCreator(book.CreatorID) {
		json.BadRequest(w, "unknown creator")
		return
	}

	added, err := h.store.AddBook(&book)
	if err != nil {
		json.ServerError(w, err)
		return
	}
	json.Created(w, added)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "id")
	book, err := h.store.MustGetBook(&model.FindBook{ID: &id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.NotFound(w, nil)
			return
		}
		json.ServerError(w, err)
		return
	}
	json.OK(w, book)
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	find := &model.FindBook{}
	if creatorID := request.QueryIntParam(r, "creator_id", 0); creatorID > 0 {
		find.CreatorID = &creatorID
	}
	if request.QueryStringParam(r, "released", "") == "1" {
		find.Released = true
	}

	books, err := h.store.ListBooks(find)
	if err != nil {
		json.ServerError(w, err)
		return
	}
	json.OK(w, books)
}

// completeBook queues the release pipeline for a book. The job does the
// packaging; the response only confirms the enqueue.
func (h *Handler) completeBook(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "id")
	book, err := h.store.MustGetBook(&model.FindBook{ID: &id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.NotFound(w, nil)
			return
		}
		json.ServerError(w, err)
		return
	}
	if book.Released() {
		json.BadRequest(w, "book is already released")
		return
	}

	job, err := h.store.AddJob(model.Job{
		UUID:        util.GenUUID(),
		BookID:      book.ID,
		Type:        model.JobTypeSetBookCompleted,
		Status:      model.JobStatusPending,
		MaxRequeues: config.Opts.MaxRequeues,
	})
	if err != nil {
		json.ServerError(w, err)
		return
	}
	h.pool.Push(*job)
	json.OK(w, map[string]any{"success": true, "job_id": job.ID})
}
