package http

import (
	"net/http"

	"housefin/internal/core"
)

type profilePage struct {
	Page
	Home  *core.Home
	Stats core.UserStats
	Form  core.ProfileUpdate
	Field string
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.renderProfile(w, r, http.StatusOK, profilePage{
		Page: Page{Message: flashMessage(r)},
		Form: core.ProfileUpdate{FullName: user.FullName, Email: user.Email},
	})
}

// handleUpdateProfile changes the caller's full name and email.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	upd := core.ProfileUpdate{FullName: p.Get("full_name"), Email: p.Get("email")}

	u, err := s.accounts.UpdateProfile(r.Context(), currentUser(r).ID, upd)
	if err != nil {
		ve, ok := core.AsValidation(err)
		if !ok || p.IsJSON() || wantsJSON(r) {
			s.writeError(w, r, err)
			return
		}
		s.renderProfile(w, r, http.StatusUnprocessableEntity, profilePage{
			Page:  Page{Error: ve.Message()},
			Form:  upd,
			Field: ve.Field,
		})
		return
	}

	if p.IsJSON() || wantsJSON(r) {
		NewResponse().JSON(newUserResponse(u)).Write(w)
		return
	}
	redirectWithMessage(w, r, "/profile", "Profile updated successfully")
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, status int, data profilePage) {
	ctx := r.Context()
	user := currentUser(r)
	data.Title = "Profile"
	data.User = &user

	stats, err := s.contributions.UserStats(ctx, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data.Stats = stats

	if user.HasHome() {
		h, err := s.households.GetHome(ctx, user.HomeID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		data.Home = &h
	}

	s.render(w, r, status, "profile.html", data)
}
