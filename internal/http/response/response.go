package response

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/diagnosis/luxsuv-tours/pkg/middleware"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status      string     `json:"status"`
	Token       string     `json:"token,omitempty"`
	Results     *int       `json:"results,omitempty"`
	RequestedAt *time.Time `json:"requestedAt,omitempty"`
	Message     string     `json:"message,omitempty"`
	Code        string     `json:"code,omitempty"`
	Error       string     `json:"error,omitempty"`
	Stack       string     `json:"stack,omitempty"`
	Data        any        `json:"data,omitempty"`
}

// JSON writes env with the given status, stamping requestedAt when the
// request carries one.
func JSON(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	if env.RequestedAt == nil {
		if t, ok := middleware.RequestedAtFrom(r.Context()); ok {
			env.RequestedAt = &t
		}
	}
	render.Status(r, status)
	render.JSON(w, r, env)
}

// Doc responds with {status, data: {doc}}.
func Doc(w http.ResponseWriter, r *http.Request, status int, doc any) {
	JSON(w, r, status, Envelope{Status: StatusSuccess, Data: map[string]any{"doc": doc}})
}

// Docs responds with {status, results, data: {docs}}.
func Docs[T any](w http.ResponseWriter, r *http.Request, docs []T) {
	if docs == nil {
		docs = []T{}
	}
	n := len(docs)
	JSON(w, r, http.StatusOK, Envelope{Status: StatusSuccess, Results: &n, Data: map[string]any{"docs": docs}})
}

// Message responds with {status: success, message}.
func Message(w http.ResponseWriter, r *http.Request, status int, msg string) {
	JSON(w, r, status, Envelope{Status: StatusSuccess, Message: msg})
}

// Token responds with a freshly issued session token and optional data.
func Token(w http.ResponseWriter, r *http.Request, status int, token string, data any) {
	JSON(w, r, status, Envelope{Status: StatusSuccess, Token: token, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
