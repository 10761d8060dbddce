package httpapi

import (
	"net/http"

	purchaseservice "soundvault/internal/purchase/service"
)

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var in purchaseservice.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.purchases.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)
	recs, err := s.purchases.List(r.Context(), skip, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "purchaseID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.purchases.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.purchases.DownloadURL(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}
