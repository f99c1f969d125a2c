package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/jobtracker/constants"
	"github.com/joseph-ayodele/jobtracker/internal/common"
	"github.com/joseph-ayodele/jobtracker/internal/entity"
	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/roles"
)

type loginRequest struct {
	EmployeeCode string `json:"employee_code"`
	Login        string `json:"login"`
	Password     string `json:"password"`
}

type loginResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Account   *entity.Account   `json:"account"`
	Roles     *roles.Resolution `json:"roles"`
}

type gateResponse struct {
	Allowed  bool         `json:"allowed"`
	Redirect string       `json:"redirect,omitempty"`
	SignOut  bool         `json:"sign_out"`
	Reason   string       `json:"reason,omitempty"`
	Page     *pageContext `json:"page,omitempty"`
}

// pageContext is what an allowed protected page needs to render.
type pageContext struct {
	Path      string            `json:"path"`
	Account   *entity.Account   `json:"account"`
	Roles     *roles.Resolution `json:"roles"`
	Processes []string          `json:"processes"`
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogin signs in, provisions the account on first sign-in and resolves its roles.
// Accounts without any role are refused a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	login := strings.TrimSpace(req.Login)
	if login == "" && strings.TrimSpace(req.EmployeeCode) != "" {
		login = identity.LoginFor(req.EmployeeCode, s.loginDomain)
	}
	v := common.NewValidator().
		Field("employee_code", login, common.Required).
		Field("password", req.Password, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	ctx := r.Context()
	sess, err := s.auth.SignIn(ctx, login, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	account, err := s.provisioner.Ensure(ctx, sess.IdentityID, identity.EmployeeCodeFromLogin(sess.Login))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	res, err := s.resolver.Resolve(account)
	if err != nil {
		s.logger.Warn("login.refused", "account_id", account.ID, "code", common.CodeOf(err))
		s.clearSessionCookie(w)
		writeError(w, r, s.logger, err)
		return
	}

	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Account:   account,
		Roles:     res,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"login":   p.Claims.Login,
		"account": p.Account,
		"roles":   p.Resolution,
	})
}

// handleGate answers whether the caller may open the page at ?path=. A denied check
// carries the redirect target; a sign-out also clears the session cookie.
func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if !strings.HasPrefix(path, "/") {
		writeError(w, r, s.logger, common.ValidationErrorf(common.CodeValidation, "path must be an absolute page path"))
		return
	}
	d := s.gate.Check(r.Context(), sessionToken(r), path)
	if d.SignOut {
		s.clearSessionCookie(w)
	}
	resp := gateResponse{
		Allowed:  d.Allowed,
		Redirect: d.Redirect,
		SignOut:  d.SignOut,
		Reason:   d.Reason,
	}
	if d.Allowed && d.Principal != nil {
		resp.Page = &pageContext{
			Path:      path,
			Account:   d.Principal.Account,
			Roles:     d.Principal.Resolution,
			Processes: departmentProcesses(path),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// departmentProcesses names the processes listed on a department page. Admin pages get none.
func departmentProcesses(path string) []string {
	role, _ := constants.RequiredRole(path)
	if names, ok := constants.DepartmentProcesses[role]; ok {
		return names
	}
	return []string{}
}
