package httpapi

import (
	"net/http"
)

func (s *Server) handleStreamURL(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	url, err := s.streams.StreamURL(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"stream_url": url})
}

func (s *Server) handleRecordPlay(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in struct {
		Duration int `json:"duration"`
	}
	// An empty body means an unknown duration.
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.streams.RecordPlay(r.Context(), id, in.Duration); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
