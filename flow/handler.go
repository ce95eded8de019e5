package flow

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/liaohanzhen/cnoauth/binder"
)

// allowedParam is the charset accepted for inbound state/code/subject
// values. Anything outside it is a tampered or malformed request and is
// rejected before the value is used anywhere.
var allowedParam = regexp.MustCompile(`^[A-Za-z0-9_\-.+/=]*$`)

// sanitizeParam fetches a query/form value and enforces the charset rule.
func sanitizeParam(r *http.Request, name string) (string, error) {
	value := r.FormValue(name)
	if !allowedParam.MatchString(value) {
		return "", ErrInvalidParam
	}
	return value, nil
}

// Router returns the HTTP surface of the flow:
//
//	GET  /      start a login attempt (or short-circuit when logged in)
//	POST /      provider response (response_mode=form_post)
//	POST /bind  complete a pending binding with local credentials
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleRedirect)
	r.Post("/", s.handleRedirect)
	r.Post("/bind", s.handleBind)
	return r
}

func (s *Service) handleRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := sanitizeParam(r, "state")
	if err != nil {
		s.failLogin(w, r, err)
		return
	}
	code, err := sanitizeParam(r, "code")
	if err != nil {
		s.failLogin(w, r, err)
		return
	}

	var result *Result
	if state != "" || code != "" || r.FormValue("error_description") != "" {
		result, err = s.HandleResponse(ctx, ResponseParams{
			State:            state,
			Code:             code,
			ErrorDescription: r.FormValue("error_description"),
		})
	} else {
		result, err = s.Start(ctx, StartRequest{
			SessionKey:    s.sessions.SessionKey(r),
			Authenticated: s.sessions.IsAuthenticated(r),
			WantsURL:      s.sessions.WantsURL(r),
			ReAuth:        r.FormValue("reauth") == "1",
			JustAuth:      r.FormValue("justauth") == "1",
		})
	}
	if err != nil {
		s.failLogin(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Service) handleBind(w http.ResponseWriter, r *http.Request) {
	subject, err := sanitizeParam(r, "subject")
	if err != nil || subject == "" {
		s.failLogin(w, r, ErrInvalidParam)
		return
	}

	result, err := s.Bind(r.Context(), subject, r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		s.failLogin(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Service) writeResult(w http.ResponseWriter, r *http.Request, result *Result) {
	switch result.Outcome {
	case OutcomeLoggedIn:
		if result.Account != nil {
			if err := s.sessions.CompleteLogin(w, r, result.Account); err != nil {
				s.failLogin(w, r, err)
				return
			}
		}
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	case OutcomeAuthorizationRedirect, OutcomeNeedsBinding:
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	case OutcomeAuthenticatedOnly:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "authenticated"})
	default:
		http.Error(w, "unexpected outcome", http.StatusInternalServerError)
	}
}

// failLogin ends the request with a generic message. Detail stays in the
// debug log so provider internals never reach the browser.
func (s *Service) failLogin(w http.ResponseWriter, r *http.Request, err error) {
	s.debugf(r.Context(), "login attempt failed",
		"caller", "flow.Service.failLogin",
		"path", r.URL.Path,
		"error", err,
	)

	status := http.StatusUnauthorized
	if !isLoginFailure(err) {
		status = http.StatusInternalServerError
	}
	http.Error(w, "Authentication failed. Please try again.", status)
}

// isLoginFailure separates expected login failures from infrastructure
// errors; both get the same body, only the status differs.
func isLoginFailure(err error) bool {
	for _, candidate := range []error{
		ErrAuthorization, ErrNoAuthCode, ErrUnknownState, ErrNoUserInfo,
		ErrInvalidParam, binder.ErrInvalidCredentials, binder.ErrAlreadyBound,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
