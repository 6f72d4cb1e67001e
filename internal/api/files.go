// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	controlhttp "github.com/chatrelay/chatrelay/internal/control/http"
	"github.com/chatrelay/chatrelay/internal/files"
	"github.com/chatrelay/chatrelay/internal/log"
)

// multipartOverhead covers boundaries and part headers on top of the file.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.files.MaxUploadBytes()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			controlhttp.WriteError(w, r, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, http.ErrMissingFile):
			controlhttp.WriteError(w, r, http.StatusBadRequest, "no file uploaded")
		default:
			controlhttp.WriteError(w, r, http.StatusBadRequest, "invalid multipart body")
		}
		return
	}
	defer func() { _ = file.Close() }()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	stored, err := s.files.Save(header.Filename, file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, files.ErrTooLarge), errors.As(err, &tooLarge):
			controlhttp.WriteError(w, r, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, files.ErrInvalidName):
			controlhttp.WriteError(w, r, http.StatusBadRequest, "invalid file name")
		default:
			logger := log.WithContext(r.Context(), s.logger)
			logger.Error().
				Err(err).
				Str(log.FieldEvent, "files.upload_failed").
				Msg("failed to store upload")
			controlhttp.WriteError(w, r, http.StatusInternalServerError, "failed to store file")
		}
		return
	}
	controlhttp.WriteJSON(w, http.StatusOK, stored)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := s.files.List()
	if err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "files.list_failed").
			Msg("failed to list files")
		controlhttp.WriteError(w, r, http.StatusInternalServerError, "failed to list files")
		return
	}
	controlhttp.WriteJSON(w, http.StatusOK, listing)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	category, err := files.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		controlhttp.WriteError(w, r, http.StatusBadRequest, "invalid category")
		return
	}

	f, info, err := s.files.Open(category, chi.URLParam(r, "filename"))
	if err != nil {
		switch {
		case errors.Is(err, files.ErrInvalidName):
			controlhttp.WriteError(w, r, http.StatusBadRequest, "invalid file name")
		case errors.Is(err, files.ErrNotFound):
			controlhttp.WriteError(w, r, http.StatusNotFound, "file not found")
		default:
			logger := log.WithContext(r.Context(), s.logger)
			logger.Error().
				Err(err).
				Str(log.FieldEvent, "files.open_failed").
				Msg("failed to open file")
			controlhttp.WriteError(w, r, http.StatusInternalServerError, "failed to open file")
		}
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
