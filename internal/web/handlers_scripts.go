package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"uzigbee-devices/internal/script"
)

func (s *Server) scriptManager() *script.Manager {
	if s.scripts == nil {
		return nil
	}
	return s.scripts.Manager()
}

func (s *Server) handleAPIListScripts(w http.ResponseWriter, r *http.Request) {
	mgr := s.scriptManager()
	if mgr == nil {
		s.writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	scripts, err := mgr.List()
	if err != nil {
		s.logger.Error("list scripts", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if scripts == nil {
		scripts = []*script.Script{}
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleAPIGetScript(w http.ResponseWriter, r *http.Request) {
	mgr := s.scriptManager()
	if mgr == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	sc, err := mgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeScriptError(w, "get script", err)
		return
	}
	s.writeJSON(w, http.StatusOK, sc)
}

type saveScriptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) handleAPICreateScript(w http.ResponseWriter, r *http.Request) {
	mgr := s.scriptManager()
	if mgr == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scripts not available"})
		return
	}

	var req saveScriptRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	saved, err := mgr.Save(&script.Script{
		Meta: script.ScriptMeta{
			Name:        req.Name,
			Description: req.Description,
			Enabled:     req.Enabled,
		},
		LuaCode: req.LuaCode,
	})
	if err != nil {
		s.writeScriptError(w, "create script", err)
		return
	}
	s.reloadAfterScriptChange(r, saved.ID)
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleAPIUpdateScript(w http.ResponseWriter, r *http.Request) {
	mgr := s.scriptManager()
	if mgr == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scripts not available"})
		return
	}

	existing, err := mgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeScriptError(w, "get script", err)
		return
	}

	var req saveScriptRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name != "" {
		existing.Meta.Name = req.Name
	}
	existing.Meta.Description = req.Description
	existing.Meta.Enabled = req.Enabled
	existing.LuaCode = req.LuaCode

	saved, err := mgr.Save(existing)
	if err != nil {
		s.writeScriptError(w, "update script", err)
		return
	}
	s.reloadAfterScriptChange(r, saved.ID)
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAPIDeleteScript(w http.ResponseWriter, r *http.Request) {
	mgr := s.scriptManager()
	if mgr == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
		return
	}
	id := r.PathValue("id")
	if err := mgr.Delete(id); err != nil {
		s.writeScriptError(w, "delete script", err)
		return
	}
	s.reloadAfterScriptChange(r, id)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIRunScript(w http.ResponseWriter, r *http.Request) {
	if s.scripts == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scripts not available"})
		return
	}

	id := r.PathValue("id")
	if id == "_inline" {
		var req struct {
			LuaCode string `json:"lua_code"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		s.writeJSON(w, http.StatusOK, s.scripts.RunLuaCode(r.Context(), req.LuaCode))
		return
	}
	s.writeJSON(w, http.StatusOK, s.scripts.RunScript(r.Context(), id))
}

// reloadAfterScriptChange republishes the catalog so script edits take effect.
// A failed reload keeps the previous registry and is only logged.
func (s *Server) reloadAfterScriptChange(r *http.Request, id string) {
	if err := s.catalog.Reload(r.Context()); err != nil {
		s.logger.Error("reload after script change", "id", id, "err", err)
	}
}

func (s *Server) writeScriptError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, script.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "script not found"})
	case errors.Is(err, script.ErrInvalidID):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.logger.Error(op, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
