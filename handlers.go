package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"groups/export"
	"groups/grouper"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func handleListStudents(rs roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		students, err := rs.ListStudents(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, students)
	}
}

func handleCreateStudent(rs roster, a authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.requireUser(w, r)
		if !ok {
			return
		}
		var body struct {
			Name        string   `json:"name"`
			Preferences []string `json:"preferences"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		st, err := rs.AddStudent(r.Context(), body.Name, body.Preferences)
		switch {
		case errors.Is(err, ErrNoName), errors.Is(err, ErrNoPreferences):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Info("student added", zap.String("id", st.ID), zap.String("by", email))
		writeJSONStatus(w, http.StatusCreated, st)
	}
}

func handleDeleteStudent(rs roster, a authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.requireAdmin(w, r); !ok {
			return
		}
		err := rs.RemoveStudent(r.Context(), r.PathValue("studentID"))
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "student not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleClearStudents(rs roster, a authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.requireAdmin(w, r)
		if !ok {
			return
		}
		n, err := rs.ClearStudents(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Info("roster cleared", zap.Int64("removed", n), zap.String("by", email))
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListCases(rs roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cases, err := rs.ListCases(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, cases)
	}
}

func handleCreateCase(rs roster, a authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.requireAdmin(w, r); !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		err := rs.AddCase(r.Context(), body.Name)
		switch {
		case errors.Is(err, ErrNoName):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, ErrDuplicateCase):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"name": strings.TrimSpace(body.Name)})
	}
}

func handleDeleteCase(rs roster, a authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.requireAdmin(w, r); !ok {
			return
		}
		err := rs.RemoveCase(r.Context(), r.PathValue("name"))
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "case not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// buildFromRoster snapshots the roster and groups it. The returned status is
// meaningful only when err is non-nil.
func buildFromRoster(r *http.Request, rs roster, size int, logger *zap.Logger) ([]grouper.Group, int, error) {
	students, err := rs.ListStudents(r.Context())
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	rosterStudents.Set(float64(len(students)))
	if err := grouper.CheckRequest(len(students), size); err != nil {
		groupBuilds.WithLabelValues("rejected").Inc()
		return nil, http.StatusBadRequest, err
	}

	start := time.Now()
	groups := grouper.Build(students, size)
	elapsed := time.Since(start)
	groupBuildDuration.Observe(elapsed.Seconds())
	groupBuilds.WithLabelValues("ok").Inc()
	logger.Info("groups generated",
		zap.Int("students", len(students)),
		zap.Int("group_size", size),
		zap.Int("groups", len(groups)),
		zap.Duration("elapsed", elapsed))
	return groups, http.StatusOK, nil
}

func handleBuildGroups(rs roster, defaultSize int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GroupSize *int `json:"group_size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		size := defaultSize
		if body.GroupSize != nil {
			size = *body.GroupSize
		}
		groups, status, err := buildFromRoster(r, rs, size, logger)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, map[string]any{"groups": groups})
	}
}

func handleExportGroups(rs roster, defaultSize int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		size := defaultSize
		if v := r.URL.Query().Get("group_size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid group_size", http.StatusBadRequest)
				return
			}
			size = n
		}
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "text" {
			http.Error(w, "format must be csv or text", http.StatusBadRequest)
			return
		}

		groups, status, err := buildFromRoster(r, rs, size, logger)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		if format == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			err = export.Text(w, groups)
		} else {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)
			err = export.CSV(w, groups)
		}
		if err != nil {
			logger.Warn("export write failed", zap.String("format", format), zap.Error(err))
		}
	}
}
