package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jdholdren/clearly/internal/clearly"
	clerrs "github.com/jdholdren/clearly/internal/errors"
	"github.com/jdholdren/clearly/internal/lists"
	"github.com/jdholdren/clearly/internal/serverutil"
)

func (s Server) getPublicList(w http.ResponseWriter, r *http.Request) error {
	l, err := s.lists.PublicList(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		return clerrs.FromDomain(err, "List not found")
	}

	return serverutil.WriteJSON(w, http.StatusOK, l)
}

type claimReq struct {
	ClaimedBy string `json:"claimed_by"`
}

func (s Server) postClaim(w http.ResponseWriter, r *http.Request) error {
	var body claimReq
	// An empty body claims anonymously.
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return clerrs.E(err, http.StatusBadRequest)
	}

	vars := mux.Vars(r)
	item, err := s.lists.ClaimItem(r.Context(), vars["token"], vars["itemID"], body.ClaimedBy)
	if errors.Is(err, clearly.ErrConflict) {
		return clerrs.E("Item already claimed", http.StatusConflict)
	}
	if err != nil {
		return clerrs.FromDomain(err, "Item not found")
	}

	return serverutil.WriteJSON(w, http.StatusOK, item)
}

func (s Server) deleteClaim(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	item, err := s.lists.UnclaimItem(r.Context(), vars["token"], vars["itemID"])
	if errors.Is(err, clearly.ErrConflict) {
		return clerrs.E("Item is not claimed", http.StatusConflict)
	}
	if err != nil {
		return clerrs.FromDomain(err, "Item not found")
	}

	return serverutil.WriteJSON(w, http.StatusOK, item)
}

func (s Server) getVisit(w http.ResponseWriter, r *http.Request) error {
	dest, err := s.lists.VisitItem(r.Context(), mux.Vars(r)["itemID"])
	if err != nil {
		return clerrs.FromDomain(err, "Item not found")
	}

	http.Redirect(w, r, dest, http.StatusFound)
	return nil
}

type createListReq struct {
	Name string `json:"name"`
}

func (c createListReq) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return clerrs.E("missing name", http.StatusBadRequest, clerrs.Detail{Field: "name", Error: "required"})
	}

	return nil
}

func (s Server) postList(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[createListReq](r.Body)
	if err != nil {
		return err
	}

	l, err := s.lists.CreateList(r.Context(), body.Name)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, l)
}

func (s Server) postItem(w http.ResponseWriter, r *http.Request) error {
	var body lists.AddItemArgs
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return clerrs.E(err, http.StatusBadRequest)
	}

	item, err := s.lists.AddItem(r.Context(), mux.Vars(r)["listID"], body)
	if err != nil {
		return clerrs.FromDomain(err, "List not found")
	}

	return serverutil.WriteJSON(w, http.StatusCreated, item)
}

func (s Server) deleteItem(w http.ResponseWriter, r *http.Request) error {
	if err := s.lists.RemoveItem(r.Context(), mux.Vars(r)["itemID"]); err != nil {
		return clerrs.FromDomain(err, "Item not found")
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
