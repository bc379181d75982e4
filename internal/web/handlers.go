package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetcast/internal/backend"
	"github.com/JonMunkholm/sheetcast/internal/batch"
	"github.com/JonMunkholm/sheetcast/internal/logging"
	"github.com/JonMunkholm/sheetcast/internal/processor"
	"github.com/JonMunkholm/sheetcast/internal/specification"
)

// maxMemory is the part of a multipart body kept in memory; the rest spills
// to temporary files.
const maxMemory = 32 << 20

type columnView struct {
	Key      string `json:"key"`
	Index    *int   `json:"index,omitempty"`
	Header   string `json:"header"`
	Required bool   `json:"required"`
}

type templateView struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Columns     []columnView `json:"columns"`
}

func newTemplateView(e entry) templateView {
	cols := e.spec.Columns()
	v := templateView{
		Name:        e.template.Name(),
		Description: e.template.Description(),
		Columns:     make([]columnView, len(cols)),
	}
	for i, c := range cols {
		v.Columns[i] = columnView{Key: c.Key, Header: c.Header, Required: c.Required}
		if c.Index != specification.NoIndex {
			idx := c.Index
			v.Columns[i].Index = &idx
		}
	}
	return v
}

// validateResponse is the body of a completed validation. A rejected sheet
// is still a 200: the outcome says why.
type validateResponse struct {
	Template string                 `json:"template"`
	Source   string                 `json:"source"`
	RunID    string                 `json:"run_id,omitempty"`
	Outcome  processor.Outcome      `json:"outcome"`
	Rows     []processor.RowOutcome `json:"rows"`
}

type healthResponse struct {
	Status      string        `json:"status"`
	Templates   int           `json:"templates"`
	Validations LimiterStatus `json:"validations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Templates:   len(s.names),
		Validations: s.limiter.Status(),
	})
}

// handleListTemplates returns every template, sorted by name.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	views := make([]templateView, 0, len(s.names))
	for _, name := range s.names {
		views = append(views, newTemplateView(s.templates[name]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTemplateView(e))
}

// handleValidate casts the CSV in the multipart field "file" against the
// named template and returns the sheet and row outcomes.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, err := s.lookup(name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Validation.MaxFileSize
	if r.ContentLength > maxSize {
		respondError(w, r, &http.MaxBytesError{Limit: maxSize})
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ErrTooManyValidations) {
			s.metrics.RecordLimitRejection()
		}
		respondError(w, r, err)
		return
	}
	defer s.limiter.Release()
	s.metrics.ValidationStarted()
	defer s.metrics.ValidationFinished()

	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		respondError(w, r, fmt.Errorf("parse form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			err = errMissingFile
		}
		respondError(w, r, err)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Validation.Timeout)
	defer cancel()

	logger := logging.WithFields(ctx, "template", name, "source", header.Filename)
	p := processor.New(
		backend.CSV{Comma: s.cfg.Validation.Comma()},
		e.spec,
		processor.WithLogger(logger),
		processor.WithObserver(s.metrics.Observer(name)),
	)

	outcome, rows, err := p.Collect(ctx, file)
	if err != nil {
		respondError(w, r, fmt.Errorf("validate %s: %w", header.Filename, err))
		return
	}
	if rows == nil {
		rows = []processor.RowOutcome{}
	}

	resp := validateResponse{
		Template: name,
		Source:   header.Filename,
		Outcome:  outcome,
		Rows:     rows,
	}

	if s.recorder != nil {
		run, err := s.recorder.Record(ctx, name, batch.Report{Name: header.Filename, Outcome: outcome, Rows: rows})
		if err != nil {
			// The validation itself succeeded; report it without a run id.
			logger.Error("record validation run", "error", err)
		} else {
			resp.RunID = run.ID.String()
		}
	}

	logger.Info("validation complete", "accepted", outcome.Accepted(), "rows", len(rows))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookup(name string) (entry, error) {
	e, ok := s.templates[name]
	if !ok {
		return entry{}, fmt.Errorf("%w: %q", errTemplateNotFound, name)
	}
	return e, nil
}
