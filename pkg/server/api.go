package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/podattest/pod/pkg/auth"
	"github.com/podattest/pod/pkg/quote"
	"github.com/podattest/pod/pkg/registration"
)

/*
API wires the registration coordinator and the challenge-response
authenticator to the HTTP surface.
*/
type API struct {
	sessions      *auth.SessionStore
	authenticator *auth.Authenticator
	coordinator   *registration.Coordinator
}

func NewAPI(router *mux.Router,
	sessions *auth.SessionStore,
	authenticator *auth.Authenticator,
	coordinator *registration.Coordinator) (a *API) {
	a = &API{
		sessions:      sessions,
		authenticator: authenticator,
		coordinator:   coordinator,
	}
	router.HandleFunc("/register", a.Register).Methods(http.MethodPost)
	router.HandleFunc("/register/{login}/status", a.RegisterStatus).Methods(http.MethodGet)
	router.HandleFunc("/auth", a.Challenge).Methods(http.MethodGet)
	router.HandleFunc("/auth", a.Authenticate).Methods(http.MethodPost)
	router.HandleFunc("/", a.Index).Methods(http.MethodGet)
	return a
}

type registerRequest struct {
	Login string      `json:"login"`
	Quote quote.Quote `json:"quote"`
	Nonce quote.Nonce `json:"nonce,omitempty"`
}

type challengeResponse struct {
	Login    string `json:"login"`
	Response string `json:"response"`
}

// statusCode maps the protocol error vocabulary onto HTTP statuses. Client
// mistakes are 4xx, infrastructure faults 5xx.
func statusCode(err error) int {
	switch {
	case errors.Is(err, registration.ErrEmptyLogin),
		errors.Is(err, registration.ErrAlreadyRegistered),
		errors.Is(err, registration.ErrInProgress),
		errors.Is(err, registration.ErrUnknown),
		errors.Is(err, registration.ErrDuplicateOnInsert),
		errors.Is(err, auth.ErrNotRegistered),
		errors.Is(err, auth.ErrInvalidChallenge),
		errors.Is(err, auth.ErrInvalidEncoding),
		errors.Is(err, auth.ErrInvalidCookie),
		errors.Is(err, quote.ErrTooShort),
		errors.Is(err, quote.ErrNonceTooLong):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrAlreadyAuthenticated),
		errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusForbidden
	}
	var attestation *registration.AttestationError
	if errors.As(err, &attestation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeMessage(w, statusCode(err), Error().AddParam("description", err.Error()))
}

// Register accepts an enrollment request and immediately returns 202 with a
// status locator; verification and persistence happen in the background.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeMessage(w, http.StatusBadRequest,
			Error().AddParam("description", fmt.Sprintf("malformed request: %v", err)))
		return
	}
	log.Infof("Received register request for user with login '%s'", request.Login)

	if err := a.coordinator.Begin(request.Login, request.Quote, request.Nonce); err != nil {
		writeError(w, err)
		return
	}

	statusURL := fmt.Sprintf("/register/%s/status", url.PathEscape(request.Login))
	w.Header().Set("Location", statusURL)
	writeMessage(w, http.StatusAccepted, Ok().
		AddParam("description", "registration accepted").
		AddParam("status_url", statusURL))
}

// RegisterStatus reports the outcome of a previously accepted registration.
func (a *API) RegisterStatus(w http.ResponseWriter, r *http.Request) {
	login := mux.Vars(r)["login"]

	status, err := a.coordinator.Poll(login)
	if status == registration.StatusInProgress {
		writeMessage(w, http.StatusOK, Ok().AddParam("description", "in progress"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, Ok().AddParam("description", "registration successful"))
}

// Challenge issues (or re-issues) the authentication challenge for this
// session.
func (a *API) Challenge(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Load(r)
	if err != nil {
		writeError(w, err)
		return
	}

	challenge, err := a.authenticator.IssueChallenge(session)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.sessions.Save(w, session); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, Ok().
		AddParam("description", "challenge successfully generated").
		AddParam("challenge", challenge))
}

// Authenticate verifies the signed challenge response. The session mutation
// (challenge consumed, identity set) is written back even when verification
// fails, so a burned challenge can never be replayed.
func (a *API) Authenticate(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Load(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var request challengeResponse
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeMessage(w, http.StatusBadRequest,
			Error().AddParam("description", fmt.Sprintf("malformed request: %v", err)))
		return
	}
	log.Infof("Received challenge response from user with login '%s'", request.Login)

	verifyErr := a.authenticator.VerifyResponse(session, request.Login, request.Response)
	if err := a.sessions.Save(w, session); err != nil {
		writeError(w, err)
		return
	}
	if verifyErr != nil {
		writeError(w, verifyErr)
		return
	}
	writeMessage(w, http.StatusOK, Ok().AddParam("description", "authentication successful"))
}

// Index is the protected landing endpoint.
func (a *API) Index(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Load(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !session.Authenticated() {
		writeError(w, auth.ErrNotAuthenticated)
		return
	}
	writeMessage(w, http.StatusOK, Ok().AddParam("user_id", session.UserID))
}
