package accountinghttp

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/platform/httpx"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

// Request headers understood by the API.
const (
	HeaderCompanyID      = "X-Company-ID"
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// RequireSession builds the request session from the company and user headers.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verr := &shared.ValidationError{}
		var sess shared.Session

		company := strings.TrimSpace(r.Header.Get(HeaderCompanyID))
		switch id, err := uuid.Parse(company); {
		case company == "":
			verr.Add("%s header is required", HeaderCompanyID)
		case err != nil:
			verr.Add("%s header %q is not a valid UUID", HeaderCompanyID, company)
		default:
			sess.CompanyID = id
		}
		if user := strings.TrimSpace(r.Header.Get(HeaderUserID)); user != "" {
			id, err := uuid.Parse(user)
			if err != nil {
				verr.Add("%s header %q is not a valid UUID", HeaderUserID, user)
			}
			sess.UserID = id
		}
		if !verr.Empty() {
			httpx.ProblemWithReasons(w, http.StatusBadRequest, "Bad Request", verr.Error(), verr.Reasons)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
	})
}

// sessionOf returns the session attached by RequireSession. A missing session yields
// the zero value, which every store operation rejects.
func sessionOf(r *http.Request) shared.Session {
	sess, _ := shared.SessionFromContext(r.Context())
	return sess
}
