package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/rs/zerolog/log"
)

// Sentry attaches a Sentry hub to every request so handlers can report
// internal errors. Without a DSN it is a pass-through.
func Sentry(enabled bool) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	handler := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
	return handler.Handle
}

// Recover turns a panic into an opaque 500 and logs the stack
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.EscapedPath()).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CaptureError reports err to the request's Sentry hub, if any
func CaptureError(r *http.Request, err error) {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("path", r.URL.EscapedPath())
			scope.SetTag("method", r.Method)
			hub.CaptureException(err)
		})
	}
}

// InitSentry configures the global Sentry client. Request headers, query
// strings and client addresses are stripped before events leave the process.
func InitSentry(dsn, environment string, sampleRate float64) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		SampleRate:       sampleRate,
		SendDefaultPII:   false,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Headers = nil
		event.Request.Cookies = ""
		event.Request.QueryString = ""
		event.Request.Env = nil
		event.Request.Data = ""
	}
	event.User.IPAddress = ""
	return event
}
