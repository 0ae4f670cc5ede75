package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tokenforge/authd"
)

type createAuthcodeRequest struct {
	Email string `json:"email"`
	// Deliver defaults to true; clients that fetch the code out of band
	// can opt out of the email.
	Deliver *bool `json:"deliver,omitempty"`
}

type createTokenPairRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

func (s *Server) createAuthcode(w http.ResponseWriter, r *http.Request) {
	var req createAuthcodeRequest
	if err := decodeBody(r, &req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email is required"})
		return
	}

	deliver := req.Deliver == nil || *req.Deliver

	if err := s.engine.CreateAuthcode(r.Context(), req.Email, deliver); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) createTokenPair(w http.ResponseWriter, r *http.Request) {
	var req createTokenPairRequest
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email and code are required"})
		return
	}

	pair, err := s.engine.ExchangeAuthcode(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setPairCookies(w, pair)
	writeJSON(w, http.StatusCreated, pair)
}

// checkToken verifies the access token cookie. With ?role=N the user's
// role must be at least N. With ?auto_refresh=true an expired access
// token is transparently rotated using the refresh token cookie, and
// the new pair is installed in the response cookies.
func (s *Server) checkToken(w http.ResponseWriter, r *http.Request) {
	minimumRole := authd.NoMinimumRole
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "role must be a non-negative integer"})
			return
		}
		minimumRole = parsed
	}

	accessToken := readCookie(r, accessCookie)

	if r.URL.Query().Get("auto_refresh") != "true" {
		check, err := s.engine.CheckAccessToken(r.Context(), accessToken, minimumRole, true)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, check)
		return
	}

	refreshToken := readCookie(r, refreshCookie)
	res, err := s.engine.CheckAndRefreshTokenPair(r.Context(), accessToken, refreshToken, minimumRole)
	if err != nil {
		// A rotate-then-reject refusal still carries live credentials;
		// install them before refusing.
		var denied *authd.PermissionDeniedError
		if errors.As(err, &denied) {
			s.setPairCookies(w, denied.Pair)
		}
		s.writeError(w, r, err)
		return
	}

	if res.Refreshed {
		s.setPairCookies(w, res.Pair)
	}
	writeJSON(w, http.StatusOK, res.TokenCheck)
}

func (s *Server) refreshTokenPair(w http.ResponseWriter, r *http.Request) {
	pair, err := s.engine.RefreshTokenPair(r.Context(), readCookie(r, accessCookie), readCookie(r, refreshCookie))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setPairCookies(w, pair)
	writeJSON(w, http.StatusCreated, pair)
}

func (s *Server) deleteTokenPair(w http.ResponseWriter, r *http.Request) {
	err := s.engine.DeleteTokenPair(r.Context(), readCookie(r, accessCookie), readCookie(r, refreshCookie))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.cookies.ClearTokenPair(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setPairCookies(w http.ResponseWriter, pair authd.TokenPair) {
	cfg := s.engine.Config()
	s.cookies.SetTokenPair(w, pair.AccessToken, pair.RefreshToken, cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
}
