package http

import (
	"errors"
	"net/http"

	"housefin/internal/auth"
	"housefin/internal/core"
	"housefin/internal/services"
)

type loginPage struct {
	Page
	Username string
}

type registerPage struct {
	Page
	Form  core.Registration
	Field string
}

// TokenResponse is the body of a successful /token call.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginPage{
		Page: Page{Title: "Log in", Message: flashMessage(r)},
	})
}

// handleLogin checks the submitted credentials, stores the token in the
// session cookie and redirects to the dashboard.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	username := p.Get("username")

	sess, err := s.accounts.Login(r.Context(), username, p.Password("password"))
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			if p.IsJSON() {
				UnauthorizedError("Incorrect username or password").Write(w)
				return
			}
			s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{
				Page:     Page{Title: "Log in", Error: "Incorrect username or password."},
				Username: username,
			})
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, sess.Token, sess.ExpiresIn)
	if p.IsJSON() {
		NewResponse().JSON(tokenResponse(sess)).Write(w)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleToken issues a bearer token for programmatic clients. It accepts
// the OAuth2 password-grant form fields or a JSON object.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	sess, err := s.accounts.Login(r.Context(), p.Get("username"), p.Password("password"))
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			UnauthorizedError("Incorrect username or password").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Token issue failed", errFields(err)...)
		ErrorResponse(statusFor(err), publicMessage(err)).Write(w)
		return
	}
	NewResponse().JSON(tokenResponse(sess)).Write(w)
}

func tokenResponse(sess services.Session) TokenResponse {
	return TokenResponse{
		AccessToken: sess.Token,
		TokenType:   auth.TokenType,
		ExpiresIn:   int(sess.ExpiresIn.Seconds()),
	}
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", registerPage{
		Page: Page{Title: "Create account", User: userRef(r)},
	})
}

// handleRegister creates an account. Validation failures, including a taken
// username or email, re-render the form with 422.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := core.Registration{
		Username: p.Get("username"),
		Email:    p.Get("email"),
		FullName: p.Get("full_name"),
		Password: p.Password("password"),
	}

	u, err := s.accounts.Register(r.Context(), reg)
	if err != nil {
		ve, ok := core.AsValidation(err)
		if !ok || p.IsJSON() {
			s.writeError(w, r, err)
			return
		}
		reg.Password = ""
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", registerPage{
			Page:  Page{Title: "Create account", Error: ve.Message()},
			Form:  reg,
			Field: ve.Field,
		})
		return
	}

	if p.IsJSON() {
		NewResponse().Status(http.StatusCreated).JSON(newUserResponse(u)).Write(w)
		return
	}
	redirectWithMessage(w, r, "/login", "Registration successful")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
