package cli

import (
	"github.com/rongwang/vaccine-scheduler/internal/models"
)

// Session holds the currently authenticated identity for one interactive
// process. At most one of the two slots is set; login while a session is
// active is rejected until logout.
type Session struct {
	patient   string
	caregiver string
}

// Active reports whether any identity is logged in.
func (s *Session) Active() bool {
	return s.patient != "" || s.caregiver != ""
}

// Role returns the role of the logged-in identity, or "" if none.
func (s *Session) Role() models.Role {
	switch {
	case s.patient != "":
		return models.RolePatient
	case s.caregiver != "":
		return models.RoleCaregiver
	}
	return ""
}

// Username returns the logged-in username, or "" if none.
func (s *Session) Username() string {
	if s.patient != "" {
		return s.patient
	}
	return s.caregiver
}

func (s *Session) login(role models.Role, username string) {
	if role == models.RolePatient {
		s.patient = username
		return
	}
	s.caregiver = username
}

func (s *Session) logout() {
	s.patient = ""
	s.caregiver = ""
}
