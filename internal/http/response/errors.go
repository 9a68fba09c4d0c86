package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

// HandlerFunc is an HTTP handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

const genericMessage = "Something went very wrong!"

// Translator turns errors into JSON error responses. In development it
// exposes the underlying error and stack; otherwise only operational
// messages reach the client.
type Translator struct {
	Dev bool
}

func NewTranslator(dev bool) *Translator {
	return &Translator{Dev: dev}
}

// Wrap adapts h to http.HandlerFunc. Returned errors and panics are written
// through the translator.
func (t *Translator) Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer t.recoverPanic(w, r)
		if err := h(w, r); err != nil {
			t.Write(w, r, err)
		}
	}
}

// Recover is the middleware form of Wrap's panic handling.
func (t *Translator) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer t.recoverPanic(w, r)
		next.ServeHTTP(w, r)
	})
}

func (t *Translator) recoverPanic(w http.ResponseWriter, r *http.Request) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}
	t.Write(w, r, &panicError{value: rec, stack: debug.Stack()})
}

// panicError carries the stack of the goroutine that panicked.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// NotFoundRoute answers requests no route matched.
func (t *Translator) NotFoundRoute(w http.ResponseWriter, r *http.Request) {
	t.Write(w, r, domain.Errorf(domain.KindUnknownRoute, "Can't find %s on this server!", r.URL.Path))
}

// MethodNotAllowed answers requests whose path matched under another method.
func (t *Translator) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	t.Write(w, r, domain.Errorf(domain.KindUnknownRoute, "Can't find %s %s on this server!", r.Method, r.URL.Path))
}

// Write classifies err and sends the matching error envelope.
func (t *Translator) Write(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	de, operational := Classify(err)
	status := StatusCode(de.Kind)

	switch {
	case !operational || status >= http.StatusInternalServerError:
		logger.ErrorContext(ctx, "request failed", "error", err, "status", status)
	case de.Kind == domain.KindExpiredToken:
		logger.DebugContext(ctx, "request rejected", "error", err, "status", status)
	default:
		logger.InfoContext(ctx, "request rejected", "error", err, "status", status)
	}

	env := Envelope{Status: statusText(status), Message: de.Message, Code: string(de.Kind)}
	switch {
	case t.Dev:
		env.Error = err.Error()
		var pe *panicError
		if errors.As(err, &pe) {
			env.Stack = string(pe.stack)
		}
	case !operational:
		env.Message = genericMessage
	}
	JSON(w, r, status, env)
}

func statusText(status int) string {
	if status >= http.StatusInternalServerError {
		return StatusError
	}
	return StatusFail
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindDuplicateKey, domain.KindInvalidResetToken:
		return http.StatusBadRequest
	case domain.KindAuthRequired, domain.KindInvalidCredentials, domain.KindInvalidToken,
		domain.KindExpiredToken, domain.KindStalePassword, domain.KindUserGone:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound, domain.KindUnknownRoute:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindPaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var dupKeyValue = regexp.MustCompile(`dup key: \{ ?[^:]*: ?(.+?) ?\}`)

// Classify returns the operational error err represents. ok is false for
// unexpected failures, which are reported as Internal.
func Classify(err error) (de *domain.Error, ok bool) {
	if errors.As(err, &de) {
		return de, de.Kind != domain.KindInternal
	}

	var (
		invalidID *domain.InvalidIDError
		verrs     validator.ValidationErrors
		syntax    *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return domain.Wrap(domain.KindNotFound, "No document found with that ID", err), true
	case errors.As(err, &invalidID):
		return domain.Wrap(domain.KindValidation, invalidID.Error(), err), true
	case mongo.IsDuplicateKeyError(err):
		value := "value"
		if m := dupKeyValue.FindStringSubmatch(err.Error()); m != nil {
			value = m[1]
		}
		return domain.Wrap(domain.KindDuplicateKey,
			fmt.Sprintf("Duplicate field value: %s. Please use another value!", value), err), true
	case errors.As(err, &verrs):
		de, _ := domain.ValidationError(err).(*domain.Error)
		return de, true
	case errors.As(err, &tooLarge):
		return domain.Wrap(domain.KindValidation, "Request body too large", err), true
	case errors.As(err, &syntax), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return domain.Wrap(domain.KindValidation, "Invalid JSON body", err), true
	case errors.Is(err, auth.ErrExpiredToken):
		return domain.Wrap(domain.KindExpiredToken, "Your token has expired! Please log in again.", err), true
	case errors.Is(err, auth.ErrInvalidToken):
		return domain.Wrap(domain.KindInvalidToken, "Invalid token. Please log in again!", err), true
	}

	return domain.Wrap(domain.KindInternal, err.Error(), err), false
}
