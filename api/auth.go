package api

import (
	"context"
	"errors"
	"fmt"
)

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role,omitempty"`
}

// Login signs an admin or quiz master in and stores the access token.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	body := map[string]string{"username": username, "password": password}
	return c.login(ctx, "/auth/login", body)
}

// TeamLogin signs a team device in with its join code.
func (c *Client) TeamLogin(ctx context.Context, code, nickname string) (*Token, error) {
	body := map[string]string{"code": code, "nickname": nickname}
	return c.login(ctx, "/auth/teams/login", body)
}

func (c *Client) login(ctx context.Context, endpoint string, body interface{}) (*Token, error) {
	var tok Token
	if err := c.Post(ctx, endpoint, body, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	if err := c.tokens.Set(ctx, tok.AccessToken); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	logger.Info().Str("role", tok.Role).Msg("logged in")
	return &tok, nil
}

// Logout forgets the stored token.
func (c *Client) Logout(ctx context.Context) error {
	return c.tokens.Clear(ctx)
}
