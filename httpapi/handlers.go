package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/linkpage"
	"github.com/Keksclan/linkSquirrel/pagerpc"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies; AI page HTML may be up to 1 MiB.
const maxBodyBytes = 2 << 20

type handlers struct {
	pages  pagerpc.Pages
	health func(context.Context) error
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		msg = "storage unavailable"
	case status >= http.StatusInternalServerError:
		msg = http.StatusText(status)
	}
	writeError(w, r, status, code, msg)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, ErrValidationJSON, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, ErrValidationJSON, "malformed JSON body")
		return false
	}
	return true
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.GetProfile(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, http.StatusNotFound, ErrResourceNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) saveProfile(w http.ResponseWriter, r *http.Request) {
	var p linkpage.Profile
	if !decode(w, r, &p) {
		return
	}
	p.Username = mux.Vars(r)["username"]
	actor, _ := contextx.ActorFromContext(r.Context())
	if err := h.pages.SaveProfile(r.Context(), actor, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (h *handlers) getAIPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.GetAIPage(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, http.StatusNotFound, ErrResourceNotFound, "ai page not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// renderAIPage serves the stored HTML of an AI page as a document.
func (h *handlers) renderAIPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.GetAIPage(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' data: https:; script-src 'none'")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write([]byte(p.HTML))
}

func (h *handlers) saveAIPage(w http.ResponseWriter, r *http.Request) {
	var p linkpage.AIPage
	if !decode(w, r, &p) {
		return
	}
	p.Slug = mux.Vars(r)["slug"]
	actor, _ := contextx.ActorFromContext(r.Context())
	if err := h.pages.SaveAIPage(r.Context(), actor, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (h *handlers) deleteAIPage(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextx.ActorFromContext(r.Context())
	if err := h.pages.DeleteAIPage(r.Context(), actor, mux.Vars(r)["slug"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) invalidateTag(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.InvalidateTag(r.Context(), mux.Vars(r)["tag"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
