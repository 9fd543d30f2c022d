package handler

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/Niranjjith/Department-portal/internal/middleware"
)

// page returns the view data every template expects.
func page(r *http.Request, title string) map[string]interface{} {
	data := map[string]interface{}{
		"Title":     title,
		"CSRFField": csrf.TemplateField(r),
		"CSRFToken": csrf.Token(r),
	}
	if user, ok := middleware.CurrentUser(r.Context()); ok {
		data["User"] = user
	}
	return data
}

func render(w http.ResponseWriter, log *slog.Logger, tmpl *template.Template, name string, data map[string]interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Error("render template", "template", name, "error", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}

// text writes a plain-text message with status 200.
func text(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
