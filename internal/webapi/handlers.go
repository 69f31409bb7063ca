package webapi

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bborn/jarvis/internal/db"
)

// handleListProjects returns all registered projects, newest first.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.ListProjects()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []*db.Project{}
	}
	jsonResponse(w, projects, http.StatusOK)
}

type registerRequest struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Remote string `json:"remote"`
}

// handleRegister registers a project directory. Projects on this host
// typically self-register from a post-clone hook.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := parseJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	if !filepath.IsAbs(req.Path) {
		jsonError(w, "path must be absolute", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = filepath.Base(req.Path)
	}

	project := &db.Project{
		Name:   req.Name,
		Path:   req.Path,
		Remote: req.Remote,
	}
	if err := s.db.CreateProject(project); err != nil {
		if errors.Is(err, db.ErrProjectExists) {
			jsonError(w, "project already registered", http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.hub.Publish(Event{Type: "project_registered", Data: project})
	s.logger.Info("project registered", "name", project.Name, "path", project.Path)

	jsonResponse(w, project, http.StatusCreated)
}

// handleListAssets returns discovered assets, optionally filtered by type.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.db.ListAssets(r.URL.Query().Get("type"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []*db.Asset{}
	}
	jsonResponse(w, assets, http.StatusOK)
}
