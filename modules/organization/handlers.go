package organization

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/orgkit/handler"
	"github.com/dmitrymomot/orgkit/pkg/binder"
	"github.com/dmitrymomot/orgkit/pkg/jwt"
	"github.com/dmitrymomot/orgkit/pkg/validator"
	orgs "github.com/dmitrymomot/orgkit/svc/organization"
	"github.com/dmitrymomot/orgkit/svc/tenant"
)

var (
	bindJSON  handler.Bind = binder.JSON()
	bindQuery handler.Bind = binder.Query()
)

// CreateRequest is the body of POST /org/create.
// Supplying db_uri or db_name (or db_mode "dedicated") makes the organization dedicated.
type CreateRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	DBMode           string `json:"db_mode,omitempty"`
	DBURI            string `json:"db_uri,omitempty"`
	DBName           string `json:"db_name,omitempty"`
}

type GetRequest struct {
	OrganizationName string `query:"organization_name"`
}

// UpdateRequest is the body of PUT /org/update. Absent fields are left alone.
type UpdateRequest struct {
	OrganizationName    string  `json:"organization_name"`
	NewOrganizationName *string `json:"new_organization_name,omitempty"`
	Email               *string `json:"email,omitempty"`
	Password            *string `json:"password,omitempty"`
	DBMode              *string `json:"db_mode,omitempty"`
	DBURI               *string `json:"db_uri,omitempty"`
	DBName              *string `json:"db_name,omitempty"`
}

type DeleteRequest struct {
	OrganizationName string `query:"organization_name"`
}

type LoginRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) create(ctx handler.Context, req CreateRequest) handler.Response {
	in := tenant.CreateInput{
		Name:     req.OrganizationName,
		Email:    req.Email,
		Password: req.Password,
	}

	switch orgs.DBMode(strings.ToLower(strings.TrimSpace(req.DBMode))) {
	case "":
		if req.DBURI != "" || req.DBName != "" {
			in.Descriptor = &orgs.ConnectionDescriptor{URI: req.DBURI, DatabaseName: req.DBName}
		}
	case orgs.ModeDedicated:
		in.Descriptor = &orgs.ConnectionDescriptor{URI: req.DBURI, DatabaseName: req.DBName}
	case orgs.ModeShared:
		if req.DBURI != "" || req.DBName != "" {
			return handler.Fail(invalidField("db_mode", "shared organizations take no db_uri or db_name"))
		}
	default:
		return handler.Fail(invalidField("db_mode", "must be shared or dedicated"))
	}

	sum, err := s.svc.Create(ctx, in)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(sum, handler.WithJSONStatus(http.StatusCreated))
}

func (s *Server) get(ctx handler.Context, req GetRequest) handler.Response {
	sum, err := s.svc.Get(ctx, req.OrganizationName)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(sum)
}

func (s *Server) update(ctx handler.Context, req UpdateRequest) handler.Response {
	token, _ := jwt.GetToken(ctx)

	in := tenant.UpdateInput{
		Name:         req.NewOrganizationName,
		Email:        req.Email,
		Password:     req.Password,
		URI:          req.DBURI,
		DatabaseName: req.DBName,
	}
	if req.DBMode != nil {
		mode := orgs.DBMode(strings.ToLower(strings.TrimSpace(*req.DBMode)))
		if !mode.Valid() {
			return handler.Fail(invalidField("db_mode", "must be shared or dedicated"))
		}
		in.DBMode = &mode
	}

	sum, err := s.svc.Update(ctx, req.OrganizationName, in, token)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(sum)
}

func (s *Server) delete(ctx handler.Context, req DeleteRequest) handler.Response {
	token, _ := jwt.GetToken(ctx)

	if err := s.svc.Delete(ctx, req.OrganizationName, token); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(success{Success: true})
}

func (s *Server) login(ctx handler.Context, req LoginRequest) handler.Response {
	tok, err := s.svc.Login(ctx, tenant.LoginInput{
		OrgName:  req.OrganizationName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, orgs.ErrInvalidCredential) {
			return handler.Fail(handler.ErrUnauthorized.WithDetail("invalid credentials").Wrap(err))
		}
		return handler.Fail(err)
	}

	return handler.JSON(TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   strings.ToLower(tok.TokenType),
		ExpiresIn:   int64(tok.ExpiresAt.Sub(s.now()).Round(time.Second) / time.Second),
		ExpiresAt:   tok.ExpiresAt,
	})
}

func (s *Server) stats(ctx handler.Context, _ struct{}) handler.Response {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(st)
}

func invalidField(field, message string) error {
	return errors.Join(orgs.ErrValidation, validator.ValidationErrors{{Field: field, Message: message}})
}
