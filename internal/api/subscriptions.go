package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jdholdren/clearly/internal/clearly"
	clerrs "github.com/jdholdren/clearly/internal/errors"
	"github.com/jdholdren/clearly/internal/serverutil"
)

type subscribeReq struct {
	ListID string `json:"list_id"`
	Email  string `json:"email"`
}

func (s Server) postSubscription(w http.ResponseWriter, r *http.Request) error {
	var body subscribeReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return clerrs.E(err, http.StatusBadRequest)
	}

	if err := s.subs.Subscribe(r.Context(), body.ListID, body.Email); err != nil {
		return clerrs.FromDomain(err, "List not found")
	}

	return serverutil.WriteJSON(w, http.StatusOK, okResp{
		Success: true,
		Message: "Verification email sent. Check your inbox!",
	})
}

type tokenReq struct {
	Token string `json:"token"`
}

func decodeToken(r *http.Request) (string, error) {
	var body tokenReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", clerrs.E(err, http.StatusBadRequest)
	}

	return body.Token, nil
}

func verifyErr(err error) error {
	if errors.Is(err, clearly.ErrExpired) {
		return clerrs.E("Verification link expired", http.StatusGone)
	}

	return clerrs.FromDomain(err, "Invalid or expired verification link")
}

func (s Server) putVerify(w http.ResponseWriter, r *http.Request) error {
	token, err := decodeToken(r)
	if err != nil {
		return err
	}

	if err := s.subs.Verify(r.Context(), token); err != nil {
		return verifyErr(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, okResp{
		Success: true,
		Message: "Email verified! You'll start receiving updates.",
	})
}

// Followed from the verification email, so the outcome is a page rather than
// a JSON body. Bad or expired tokens still get their JSON error.
func (s Server) getVerify(w http.ResponseWriter, r *http.Request) error {
	err := s.subs.Verify(r.Context(), r.URL.Query().Get("token"))

	var sErr *clerrs.Error
	switch {
	case err == nil:
		http.Redirect(w, r, s.links.VerifySuccess(), http.StatusFound)
	case errors.As(err, &sErr),
		errors.Is(err, clearly.ErrNotFound),
		errors.Is(err, clearly.ErrExpired):
		return verifyErr(err)
	default:
		slog.ErrorContext(r.Context(), "error verifying subscription", "error", err)
		http.Redirect(w, r, s.links.VerifyError(), http.StatusFound)
	}

	return nil
}

const unsubscribedMessage = "You've been unsubscribed. You won't receive any more updates."

func (s Server) deleteUnsubscribe(w http.ResponseWriter, r *http.Request) error {
	token, err := decodeToken(r)
	if err != nil {
		return err
	}

	if err := s.subs.Unsubscribe(r.Context(), token); err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, okResp{Success: true, Message: unsubscribedMessage})
}

func (s Server) getUnsubscribe(w http.ResponseWriter, r *http.Request) error {
	if err := s.subs.Unsubscribe(r.Context(), r.URL.Query().Get("token")); err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, okResp{Success: true, Message: unsubscribedMessage})
}
