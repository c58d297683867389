package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/openapi"
	"github.com/aretw0/switchboard/pkg/transport"
)

const tokenParam = "access_token"

func (a *Adapter) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Use(a.recoverer)

	r.Get("/_health", a.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(a.requireOpen)
		r.Get("/_openapi.json", a.handleOpenAPI)
		r.Get("/_status/stream", a.handleStatusStream)
		if a.metrics != nil {
			r.Handle("/_metrics", a.metrics)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(a.requireOpen)
		r.Use(a.authenticate)
		r.Use(a.rateLimit)
		r.Use(a.deadline)
		r.HandleFunc("/", a.handleAction)
		r.HandleFunc("/{action}", a.handleAction)
		r.HandleFunc("/{action}/*", a.handleAction)
	})

	return r
}

// handleAction resolves the action from the first path segment and dispatches it.
func (a *Adapter) handleAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")
	payload := a.readPayload(w, r)

	resp := a.dispatcher.Dispatch(r.Context(), domain.Request{
		Action:    name,
		Payload:   payload,
		Transport: Name,
	})
	if resp.Error != nil {
		a.writeError(w, resp.Error)
		return
	}
	a.writeResult(w, resp.Result)
}

// readPayload extracts the structured payload. Bodies that cannot be decoded
// into a value are passed on as raw text, which validation rejects as a
// non-object payload once the action is known.
func (a *Adapter) readPayload(w http.ResponseWriter, r *http.Request) any {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return valuesPayload(r.URL.Query())
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBody)

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			a.logger.Debug("form body rejected", "error", err)
			return err.Error()
		}
		return valuesPayload(r.PostForm)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(a.maxBody); err != nil {
			a.logger.Debug("multipart body rejected", "error", err)
			return err.Error()
		}
		return valuesPayload(r.PostForm)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.logger.Debug("request body unreadable", "error", err)
		return err.Error()
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return valuesPayload(r.URL.Query())
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		a.logger.Debug("request body is not JSON", "error", err)
		return string(body)
	}
	return payload
}

// valuesPayload flattens url.Values: single values become strings, repeated
// keys become lists. The access token never reaches the action.
func valuesPayload(values url.Values) any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if k == tokenParam {
			continue
		}
		switch len(vs) {
		case 0:
		case 1:
			out[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			out[k] = list
		}
	}
	return out
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := a.lc.State()
	code := http.StatusOK
	if state != transport.Open {
		code = http.StatusServiceUnavailable
	}
	a.writeJSON(w, code, map[string]string{
		"status": strings.ToLower(http.StatusText(code)),
		"state":  state.String(),
	})
}

func (a *Adapter) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	var catalog []domain.Action
	if reg := a.reg.Load(); reg != nil {
		for _, action := range reg.Snapshot() {
			catalog = append(catalog, action)
		}
	}
	a.writeJSON(w, http.StatusOK, openapi.Build(a.info, catalog))
}

// handleStatusStream pushes system status snapshots as server-sent events.
func (a *Adapter) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if a.status == nil {
		a.writeJSON(w, http.StatusNotFound, messageBody("status streaming is disabled"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeJSON(w, http.StatusInternalServerError, messageBody("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := a.status.Subscribe()
	defer cancel()

	a.logger.Debug("status stream subscribed", "remote", r.RemoteAddr)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			a.logger.Debug("status stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-a.closing:
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(st)
			if err != nil {
				a.logger.Error("status encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
