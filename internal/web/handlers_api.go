package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/converter"
	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/script"
	"uzigbee-devices/internal/store"
)

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	entries := s.catalog.Entries()
	if src := r.URL.Query().Get("source"); src != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if string(e.Source) == src {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	e, ok := s.catalog.Entry(r.PathValue("model"))
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "device not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAPISaveDevice(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")

	var d devicedb.Descriptor
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := devicedb.DecodeJSON(r.Body, &d); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if d.Model == "" {
		d.Model = model
	}
	if d.Model != model {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model does not match path"})
		return
	}

	if err := s.catalog.SaveCustom(r.Context(), d); err != nil {
		s.writeCatalogError(w, "save descriptor", err)
		return
	}
	e, _ := s.catalog.Entry(model)
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	if err := s.catalog.DeleteCustom(r.Context(), model); err != nil {
		s.writeCatalogError(w, "delete descriptor", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeCatalogError maps catalog write errors to status codes.
func (s *Server) writeCatalogError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, devicedb.ErrInvalid), errors.Is(err, devicedb.ErrDuplicate):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, catalog.ErrReadOnly):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "device not found"})
	case errors.Is(err, catalog.ErrNoStore):
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.logger.Error(op, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (s *Server) handleAPILookup(w http.ResponseWriter, r *http.Request) {
	d := s.catalog.Lookup(r.PathValue("zigbeeModel"))
	if d == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no descriptor claims this model"})
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAPITemplate(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"descriptor":   devicedb.Template(),
		"alternatives": devicedb.TemplateAlternatives(),
	})
}

func (s *Server) handleAPIIssues(w http.ResponseWriter, r *http.Request) {
	issues := s.catalog.Issues()
	if issues == nil {
		issues = []catalog.Issue{}
	}
	s.writeJSON(w, http.StatusOK, issues)
}

func (s *Server) handleAPIReload(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Reload(r.Context()); err != nil {
		s.logger.Error("reload registry", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"devices": s.catalog.Len(),
		"issues":  len(s.catalog.Issues()),
	})
}

func (s *Server) handleAPIListExtensions(w http.ResponseWriter, r *http.Request) {
	kinds := extend.Kinds()
	specs := make([]extend.Spec, 0, len(kinds))
	for _, k := range kinds {
		if spec, ok := extend.Lookup(k); ok {
			specs = append(specs, spec)
		}
	}
	s.writeJSON(w, http.StatusOK, specs)
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleAPIConverterJS(w http.ResponseWriter, r *http.Request) {
	s.render(w, "application/javascript; charset=utf-8", func(out io.Writer) error {
		return converter.RenderJS(out, s.catalog.Descriptors())
	})
}

func (s *Server) handleAPITemplateJS(w http.ResponseWriter, r *http.Request) {
	s.render(w, "application/javascript; charset=utf-8", converter.RenderTemplateJS)
}

func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	ds := s.catalog.Descriptors()
	switch r.PathValue("format") {
	case "json":
		s.render(w, "application/json", func(out io.Writer) error { return converter.RenderJSON(out, ds) })
	case "yaml":
		s.render(w, "application/yaml", func(out io.Writer) error { return converter.RenderYAML(out, ds) })
	case "devicefile":
		s.render(w, "application/json", func(out io.Writer) error {
			return converter.RenderDeviceFile(out, ds, s.registry)
		})
	case "lua":
		s.render(w, "text/x-lua; charset=utf-8", func(out io.Writer) error { return script.RenderLua(out, ds) })
	default:
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown export format"})
	}
}

// render writes fn's output, buffered so a failed render leaves no partial body.
func (s *Server) render(w http.ResponseWriter, contentType string, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		s.logger.Error("render export", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write export response", "err", err)
	}
}

func (s *Server) handleAPIInterview(w http.ResponseWriter, r *http.Request) {
	var id interview.Identity
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := devicedb.DecodeJSON(r.Body, &id); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	report := interview.Check(s.catalog, id)
	s.catalog.Events().Emit(catalog.Event{Type: catalog.EventInterviewChecked, Data: report})
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAPIInterviewReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeJSON(w, http.StatusOK, []interview.Report{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.reports.Reports())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
