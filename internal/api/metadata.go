package api

import (
	"net/http"

	"github.com/jdholdren/clearly/internal/serverutil"
)

// Previews a product link for the add-item form.
func (s Server) getMetadata(w http.ResponseWriter, r *http.Request) error {
	md, err := s.metadata.Fetch(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, md)
}
