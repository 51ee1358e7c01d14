package remote

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/shopfront/internal/models"
)

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/user/register", "", req, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/user/forgot-password", "", req, nil)
}

func (c *Client) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/user/forgot-password/reset", "", req, nil)
}

func (c *Client) ChangePassword(ctx context.Context, token string, req models.ChangePasswordRequest) error {
	if token == "" {
		return &Error{Kind: KindUnauthorized, Message: "sign in required"}
	}
	return c.do(ctx, http.MethodPost, "/user/change-password", token, req, nil)
}
