package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/logging"
	"github.com/medical-scribe-server/internal/notestore"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxImportBytes  = 10 << 20
)

func (s *Server) requireStore(c *gin.Context) bool {
	if s.deps.Store == nil {
		s.respondUnavailable(c, "note storage")
		return false
	}
	return true
}

func (s *Server) handleListNotes(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		s.respondBadRequest(c, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.respondBadRequest(c, "invalid offset")
		return
	}

	ctx := c.Request.Context()
	notes, err := s.deps.Store.List(ctx, limit, offset)
	if err != nil {
		s.respondError(c, err, "failed to list notes")
		return
	}
	total, err := s.deps.Store.Count(ctx)
	if err != nil {
		s.respondError(c, err, "failed to count notes")
		return
	}
	if notes == nil {
		notes = []*notestore.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"notes":  notes,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetNote(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	rec, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, "failed to load note")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteNote(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	if err := s.deps.Store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err, "failed to delete note")
		return
	}
	c.Status(http.StatusNoContent)
}

// handleExportNote downloads one note in the layout of the scribe UI
func (s *Server) handleExportNote(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	rec, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, "failed to load note")
		return
	}

	var buf bytes.Buffer
	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		if err := writeIndentedJSON(&buf, rec.Note); err != nil {
			s.respondError(c, err, "failed to export note")
			return
		}
		s.sendDownload(c, &buf, notestore.NoteFilename(time.Now(), "json"), "application/json")
	case "csv":
		if err := notestore.WriteNoteCSV(&buf, rec.Note); err != nil {
			s.respondError(c, err, "failed to export note")
			return
		}
		s.sendDownload(c, &buf, notestore.NoteFilename(time.Now(), "csv"), "text/csv; charset=utf-8")
	default:
		s.respondBadRequest(c, "format must be json or csv")
	}
}

func (s *Server) handleExportNotes(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	ctx := c.Request.Context()
	stamp := "notes_" + time.Now().UTC().Format("2006-01-02T15-04-05")

	var buf bytes.Buffer
	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		if err := s.deps.Store.ExportJSON(ctx, &buf); err != nil {
			s.respondError(c, err, "failed to export notes")
			return
		}
		s.sendDownload(c, &buf, stamp+".json", "application/json")
	case "csv":
		if err := s.deps.Store.ExportCSV(ctx, &buf); err != nil {
			s.respondError(c, err, "failed to export notes")
			return
		}
		s.sendDownload(c, &buf, stamp+".csv", "text/csv; charset=utf-8")
	default:
		s.respondBadRequest(c, "format must be json or csv")
	}
}

func (s *Server) handleImportNotes(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	r, err := notestore.OpenArchive(body)
	if err != nil {
		s.respondBadRequest(c, err.Error())
		return
	}

	imported, skipped, err := s.deps.Store.ImportJSON(c.Request.Context(), r)
	if err != nil {
		if errors.Is(err, notestore.ErrMalformedImport) || errors.Is(err, domain.ErrInvalidNote) {
			s.respondBadRequest(c, err.Error())
			return
		}
		s.respondError(c, err, "failed to import notes")
		return
	}

	logging.FromContext(c.Request.Context(), s.logger).
		WithField("imported", imported).
		WithField("skipped", skipped).
		Info("Notes imported")

	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}

func (s *Server) sendDownload(c *gin.Context, buf *bytes.Buffer, filename, contentType string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeIndentedJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
