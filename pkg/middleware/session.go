package middleware

import (
	"net/http"
	"regexp"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// Headers identifying the caller. The session id is issued upstream; the user
// id is present only for signed-in shoppers.
const (
	SessionIDHeader = "X-Session-ID"
	UserIDHeader    = "X-User-ID"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

// Session requires a well-formed X-Session-ID header and stores it, together
// with X-User-ID when present, in the request context.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionIDHeader)
		if !sessionIDPattern.MatchString(sessionID) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:      "INVALID_SESSION",
					Message:   "a valid X-Session-ID header is required",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				},
			})
			return
		}

		ctx := logger.WithSessionID(r.Context(), sessionID)
		if userID := r.Header.Get(UserIDHeader); userID != "" {
			ctx = logger.WithUserID(ctx, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
