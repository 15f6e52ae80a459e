package http

import (
	"net/http"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	sess, err := s.finance.Login(r.Context(), p.Get("email"), p.Get("password"))
	if err != nil {
		writeError(w, r, err, "login")
		return
	}
	NewResponse().
		Data(sess).
		Redirect("/dashboard").
		NotifySuccess("Login realizado com sucesso!").
		Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	f := p.Fields()
	in := api.RegisterInput{
		Name:        f.String("name"),
		Email:       f.String("email"),
		Password:    p.Get("password"),
		CPF:         core.NormalizeCPF(f.String("cpf")),
		DateOfBirth: f.Date("dateOfBirth"),
	}
	if err := f.Err(); err != nil {
		writeError(w, r, err, "register")
		return
	}

	sess, err := s.finance.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "register")
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account registered", log.FieldUserID, sess.User.ID)
	NewResponse().
		Status(http.StatusCreated).
		Data(sess).
		Redirect("/dashboard").
		NotifySuccess("Cadastro realizado com sucesso!").
		Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.Logout(r.Context()); err != nil {
		writeError(w, r, err, "logout")
		return
	}
	NewResponse().Redirect(loginPath).Write(w)
}

// handleSession tells the pages who is logged in; 401 sends them to the login.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.finance.Session(r.Context())
	if err != nil {
		UnauthorizedError("Faça login para continuar.").Write(w)
		return
	}
	NewResponse().Data(sess).Write(w)
}
