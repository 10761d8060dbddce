package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	trackmodels "soundvault/internal/track/models"
	trackservice "soundvault/internal/track/service"
	dErrors "soundvault/pkg/domain-errors"
)

// uploadBodyLimit caps upload reads before the validator's size check sees
// the payload.
const uploadBodyLimit = 512 << 20

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.UUID{}, dErrors.Newf(dErrors.CodeValidation, "%s: must be a valid uuid", name)
	}
	return id, nil
}

// pageParams reads skip/limit query parameters; bounds are enforced by the
// services via the validation guard.
func pageParams(r *http.Request) (int, int) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return skip, limit
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var in trackservice.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tracks.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tracks.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)
	tracks, err := s.tracks.ListPublic(r.Context(), skip, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleListMyTracks(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)
	tracks, err := s.tracks.ListMine(r.Context(), skip, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in trackservice.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tracks.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tracks.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readUpload pulls the file out of a multipart form under the "file" field.
func readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "request is not a valid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "form field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, uploadBodyLimit))
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "read upload")
	}
	return header.Filename, data, nil
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, s.tracks.UploadAudio)
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, s.tracks.UploadCover)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, upload func(ctx context.Context, trackID uuid.UUID, filename string, data []byte) (*trackmodels.Track, error)) {
	id, err := pathUUID(r, "trackID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filename, data, err := readUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := upload(r.Context(), id, filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
