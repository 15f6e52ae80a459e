package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/GMosna/ContabilApp/internal/core"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	CPF         string    `json:"cpf"`
	DateOfBirth core.Date `json:"dateOfBirth"`
}

type authResponse struct {
	Token string    `json:"token"`
	Name  string    `json:"name"`
	User  core.User `json:"user"`
}

func (r authResponse) session(email string) core.Session {
	s := core.Session{Token: r.Token, User: r.User}
	if s.User.Name == "" {
		s.User.Name = r.Name
	}
	if s.User.Email == "" {
		s.User.Email = email
	}
	return s
}

// Login exchanges credentials for a session. A rejection without message is
// reported as invalid credentials.
func (c *Client) Login(ctx context.Context, email, password string) (core.Session, error) {
	var out authResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": strings.TrimSpace(email), "password": password},
		out:    &out,
		public: true,
	})
	if be, ok := AsBusiness(err); ok && be.Message == genericMessage(be.Status) {
		be.Message = "E-mail ou senha inválidos."
	}
	if err != nil {
		return core.Session{}, err
	}
	if out.Token == "" {
		return core.Session{}, &BusinessError{Status: http.StatusBadGateway, Message: "Resposta de login sem token."}
	}
	return out.session(email), nil
}

// Register creates a user and returns its session. The CPF is sent unmasked.
func (c *Client) Register(ctx context.Context, in RegisterInput) (core.Session, error) {
	in.CPF = core.NormalizeCPF(in.CPF)
	in.Email = strings.TrimSpace(in.Email)
	var out authResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: in, out: &out, public: true}); err != nil {
		return core.Session{}, err
	}
	if out.Name == "" {
		out.Name = in.Name
	}
	return out.session(in.Email), nil
}
