package abilities

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const maxInputBytes = 1 << 20

type abilityResponse struct {
	Name         string          `json:"name"`
	Label        string          `json:"label"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
	Meta         metaResponse    `json:"meta"`
}

type metaResponse struct {
	Annotations annotations `json:"annotations"`
	ShowInREST  bool        `json:"show_in_rest"`
}

type annotations struct {
	ReadOnly    bool `json:"readonly"`
	Destructive bool `json:"destructive"`
	Idempotent  bool `json:"idempotent"`
}

type indexResponse struct {
	Namespace string              `json:"namespace"`
	Routes    map[string][]string `json:"routes"`
}

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]int `json:"data"`
}

// Handler serves the registry over REST under prefix:
//
//	GET  {prefix}                                                   route index
//	GET  {prefix}/abilities
//	GET  {prefix}/abilities/{namespace}/{verb}
//	GET  {prefix}/abilities/{namespace}/{verb}/run?input=<json>   read-only abilities
//	POST {prefix}/abilities/{namespace}/{verb}/run {"input": ...}  everything else
//	GET  {prefix}/categories
//	GET  {prefix}/categories/{slug}
//
// Abilities without ShowInREST are hidden.
func (r *Registry) Handler(prefix string) http.Handler {
	prefix = strings.TrimRight(prefix, "/")
	mux := http.NewServeMux()
	index := r.handleIndex(prefix)
	mux.HandleFunc("GET "+prefix+"/{$}", index)
	if prefix != "" {
		mux.HandleFunc("GET "+prefix, index)
	}
	mux.HandleFunc("GET "+prefix+"/abilities", r.handleList)
	mux.HandleFunc("GET "+prefix+"/abilities/{namespace}/{verb}", r.handleGet)
	mux.HandleFunc(prefix+"/abilities/{namespace}/{verb}/run", r.handleRun)
	mux.HandleFunc("GET "+prefix+"/categories", r.handleCategories)
	mux.HandleFunc("GET "+prefix+"/categories/{slug}", r.handleCategory)
	return mux
}

func (r *Registry) handleIndex(prefix string) http.HandlerFunc {
	get := []string{http.MethodGet}
	resp := indexResponse{
		Namespace: strings.TrimPrefix(prefix, "/"),
		Routes: map[string][]string{
			prefix:                                       get,
			prefix + "/abilities":                        get,
			prefix + "/abilities/{namespace}/{verb}":     get,
			prefix + "/abilities/{namespace}/{verb}/run": {http.MethodGet, http.MethodPost},
			prefix + "/categories":                       get,
			prefix + "/categories/{slug}":                get,
		},
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (r *Registry) handleList(w http.ResponseWriter, req *http.Request) {
	category := req.URL.Query().Get("category")
	out := []abilityResponse{}
	for _, a := range r.List() {
		if !a.meta.ShowInREST || (category != "" && a.category != category) {
			continue
		}
		out = append(out, toResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Registry) handleGet(w http.ResponseWriter, req *http.Request) {
	a, ok := r.restAbility(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(a))
}

func (r *Registry) handleRun(w http.ResponseWriter, req *http.Request) {
	a, ok := r.restAbility(w, req)
	if !ok {
		return
	}

	expected := http.MethodPost
	if a.meta.ReadOnly {
		expected = http.MethodGet
	}
	if req.Method != expected {
		writeError(w, &Error{
			Code:    CodeInvalidMethod,
			Message: "Ability must be executed with " + expected + ".",
		})
		return
	}

	var input json.RawMessage
	if expected == http.MethodGet {
		if raw := req.URL.Query().Get("input"); raw != "" {
			input = json.RawMessage(raw)
		}
	} else {
		var body struct {
			Input json.RawMessage `json:"input"`
		}
		data, err := io.ReadAll(io.LimitReader(req.Body, maxInputBytes))
		if err != nil {
			writeError(w, newError(CodeInvalidInput, err, "failed to read request body"))
			return
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				writeError(w, newError(CodeInvalidInput, err, "request body must be a JSON object"))
				return
			}
		}
		input = body.Input
	}

	out, err := a.Execute(req.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Registry) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.Categories())
}

func (r *Registry) handleCategory(w http.ResponseWriter, req *http.Request) {
	c, ok := r.Category(req.PathValue("slug"))
	if !ok {
		writeError(w, &Error{Code: "rest_ability_category_not_found", Message: "Ability category not found.", Status: http.StatusNotFound})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (r *Registry) restAbility(w http.ResponseWriter, req *http.Request) (*Ability, bool) {
	name := req.PathValue("namespace") + "/" + req.PathValue("verb")
	a, ok := r.Get(name)
	if !ok || !a.meta.ShowInREST {
		writeError(w, &Error{Code: "rest_ability_not_found", Message: "Ability not found.", Status: http.StatusNotFound})
		return nil, false
	}
	return a, true
}

func toResponse(a *Ability) abilityResponse {
	return abilityResponse{
		Name:         a.name,
		Label:        a.label,
		Description:  a.description,
		Category:     a.category,
		InputSchema:  a.inputSchema,
		OutputSchema: a.outputSchema,
		Meta: metaResponse{
			Annotations: annotations{
				ReadOnly:    a.meta.ReadOnly,
				Destructive: a.meta.Destructive,
				Idempotent:  a.meta.Idempotent,
			},
			ShowInREST: a.meta.ShowInREST,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var abilityErr *Error
	if !errors.As(err, &abilityErr) {
		abilityErr = newError(CodeExecutionFailed, err, "%v", err)
	}
	status := abilityErr.HTTPStatus()
	writeJSON(w, status, errorResponse{
		Code:    abilityErr.Code,
		Message: abilityErr.Message,
		Data:    map[string]int{"status": status},
	})
}
