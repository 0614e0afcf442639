package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"schoolbridge-backend/lib/scrapers/schoolapp"
	"schoolbridge-backend/services/studentdata"
)

type HttpService struct {
	service studentdata.Service
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, studentdata.ErrNotConnected):
		status = http.StatusNotFound
	case errors.Is(err, studentdata.ErrSessionExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, schoolapp.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJson(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

type ConnectRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s HttpService) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.service.Connect(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Authenticated {
		w.WriteHeader(http.StatusUnauthorized)
	}
	writeJson(w, res)
}

func (s HttpService) Disconnect(w http.ResponseWriter, r *http.Request) {
	err := s.service.Disconnect(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HttpService) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.service.Profile(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, profile)
}

func (s HttpService) Marks(w http.ResponseWriter, r *http.Request) {
	marks, err := s.service.Marks(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, marks)
}

func (s HttpService) Absence(w http.ResponseWriter, r *http.Request) {
	absence, err := s.service.Absence(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, absence)
}

func (s HttpService) Years(w http.ResponseWriter, r *http.Request) {
	years, err := s.service.Years(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, years)
}

func (s HttpService) StudyPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.service.StudyPlan(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, plan)
}

type SelectStudyPlanRequest struct {
	Niveau   string `json:"niveau"`
	Filiere  string `json:"filiere"`
	Semestre string `json:"semestre"`
}

func (s HttpService) SelectStudyPlan(w http.ResponseWriter, r *http.Request) {
	var req SelectStudyPlanRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	plan, err := s.service.SelectStudyPlan(
		r.Context(), r.PathValue("code"),
		req.Niveau, req.Filiere, req.Semestre,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, plan)
}

func (s HttpService) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/connect", s.Connect)
	mux.HandleFunc("DELETE /v1/students/{code}", s.Disconnect)
	mux.HandleFunc("GET /v1/students/{code}/profile", s.Profile)
	mux.HandleFunc("GET /v1/students/{code}/marks", s.Marks)
	mux.HandleFunc("GET /v1/students/{code}/absence", s.Absence)
	mux.HandleFunc("GET /v1/students/{code}/years", s.Years)
	mux.HandleFunc("GET /v1/students/{code}/studyplan", s.StudyPlan)
	mux.HandleFunc("POST /v1/students/{code}/studyplan", s.SelectStudyPlan)
}
