package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jdholdren/clearly/internal/clearly"
	clerrs "github.com/jdholdren/clearly/internal/errors"
	"github.com/jdholdren/clearly/internal/notify"
	"github.com/jdholdren/clearly/internal/serverutil"
)

type digestsResp struct {
	Message string       `json:"message"`
	Sent    int          `json:"sent"`
	Report  notify.Report `json:"report"`
}

// Sends the digests synchronously. Auth is handled by the jobs router.
func (s Server) postDigests(w http.ResponseWriter, r *http.Request) error {
	report, err := s.digests.Run(r.Context())
	switch {
	case errors.Is(err, clearly.ErrRunInProgress):
		return clerrs.E("Digest run already in progress", http.StatusConflict)
	case err != nil:
		slog.ErrorContext(r.Context(), "digest run failed", "error", err)
		return clerrs.E("Failed to fetch subscriptions", http.StatusInternalServerError)
	}

	msg := fmt.Sprintf("Sent %d notification emails", report.Sent)
	if report.Subscriptions == 0 {
		msg = "No subscriptions to process"
	}

	return serverutil.WriteJSON(w, http.StatusOK, digestsResp{
		Message: msg,
		Sent:    report.Sent,
		Report:  report,
	})
}
