package registrytest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (s *Server) accountByPJ(pj string) *Account {
	for _, a := range s.accounts {
		if strings.EqualFold(a.PJNumber, pj) {
			return a
		}
	}
	return nil
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (s *Server) startOTP(w http.ResponseWriter, r *http.Request, message string) {
	var body struct {
		PJNumber string `json:"pjNumber"`
	}
	if !decodeJSON(r, &body) || strings.TrimSpace(body.PJNumber) == "" {
		writeMessage(w, http.StatusBadRequest, "PJ number is required")
		return
	}

	s.mu.Lock()
	acct := s.accountByPJ(strings.TrimSpace(body.PJNumber))
	if acct == nil {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if !acct.IsActive {
		s.mu.Unlock()
		writeMessage(w, http.StatusForbidden, "Account is deactivated")
		return
	}
	sessionID := uuid.NewString()
	s.otpSessions[sessionID] = acct.ID
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: OTPCookie, Value: sessionID, Path: "/", HttpOnly: true})
	writeMessage(w, http.StatusOK, message)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.startOTP(w, r, "OTP sent to registered email")
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	s.startOTP(w, r, "OTP resent")
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP string `json:"otp"`
	}
	if !decodeJSON(r, &body) {
		writeMessage(w, http.StatusBadRequest, "OTP is required")
		return
	}
	cookie, err := r.Cookie(OTPCookie)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "OTP session expired")
		return
	}

	s.mu.Lock()
	userID, ok := s.otpSessions[cookie.Value]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "OTP session expired")
		return
	}
	if body.OTP != s.otp {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	delete(s.otpSessions, cookie.Value)
	profile := s.accounts[userID].profile()
	token, err := s.issueAccessLocked(userID)
	refreshValue := uuid.NewString()
	s.refreshTokens[refreshValue] = userID
	s.mu.Unlock()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{Name: OTPCookie, Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: refreshValue, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Login successful",
		"accessToken": token,
		"user":        profile,
	})
}

// handleRefresh rotates the refresh cookie and issues a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	if status := s.refreshStatus; status != 0 {
		s.mu.Unlock()
		writeMessage(w, status, "Refresh token invalid")
		return
	}
	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		s.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "No refresh token")
		return
	}
	userID, ok := s.refreshTokens[cookie.Value]
	acct := s.accounts[userID]
	if !ok || acct == nil || !acct.IsActive {
		s.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "Refresh token invalid")
		return
	}
	delete(s.refreshTokens, cookie.Value)
	rotated := uuid.NewString()
	s.refreshTokens[rotated] = userID
	token, err := s.issueAccessLocked(userID)
	profile := acct.profile()
	s.mu.Unlock()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: rotated, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": token,
		"user":        profile,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		delete(s.refreshTokens, cookie.Value)
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		delete(s.accessTokens, token)
	}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: "", Path: "/", MaxAge: -1})
	writeMessage(w, http.StatusOK, "Logged out successfully")
}
