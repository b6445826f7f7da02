package http

import (
	"net/http"

	"housefin/internal/core"
)

func (s *Server) handleCreateHome(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := core.HomeInput{Name: p.Get("name"), Description: p.Get("description")}

	h, err := s.households.CreateHome(r.Context(), currentUser(r), in)
	if err != nil {
		s.homeFailed(w, r, p, err, homeForm{Name: in.Name, Description: in.Description})
		return
	}
	s.homeDone(w, r, p, h, "Home "+h.Name+" created")
}

func (s *Server) handleJoinHome(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := p.Get("name")

	h, err := s.households.JoinHome(r.Context(), currentUser(r), name)
	if err != nil {
		s.homeFailed(w, r, p, err, homeForm{JoinName: name})
		return
	}
	s.homeDone(w, r, p, h, "Welcome to "+h.Name)
}

func (s *Server) homeFailed(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, err error, form homeForm) {
	if msg := formError(err); msg != "" && !p.IsJSON() && !wantsJSON(r) {
		form.Error = msg
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, dashboardPage{HomeForm: form})
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) homeDone(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, h core.Home, msg string) {
	if p.IsJSON() || wantsJSON(r) {
		NewResponse().Status(http.StatusCreated).JSON(newHomeResponse(h)).Write(w)
		return
	}
	redirectWithMessage(w, r, "/dashboard", msg)
}

// handleLeaveHome takes the caller out of their home.
func (s *Server) handleLeaveHome(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}

	h, err := s.households.LeaveHome(r.Context(), currentUser(r))
	if err != nil {
		s.membershipFailed(w, r, p, err)
		return
	}
	if p.IsJSON() || wantsJSON(r) {
		NewResponse().JSON(newHomeResponse(h)).Write(w)
		return
	}
	redirectWithMessage(w, r, "/dashboard", "You left "+h.Name)
}

// handleRemoveMember lets the home leader remove the member named by the
// username field.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}

	removed, err := s.households.RemoveMember(r.Context(), currentUser(r), p.Get("username"))
	if err != nil {
		s.membershipFailed(w, r, p, err)
		return
	}
	if p.IsJSON() || wantsJSON(r) {
		NewResponse().JSON(newUserResponse(removed)).Write(w)
		return
	}
	redirectWithMessage(w, r, "/dashboard", displayName(removed)+" was removed from the home")
}

func (s *Server) membershipFailed(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, err error) {
	if msg := formError(err); msg != "" && !p.IsJSON() && !wantsJSON(r) {
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, dashboardPage{Page: Page{Error: msg}})
		return
	}
	s.writeError(w, r, err)
}
