package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/socialpost/postctl/internal/models"
)

func (c *Client) Login(ctx context.Context, credentials models.Credentials) (models.AuthState, error) {
	err := credentials.Validate()
	if err != nil {
		return models.AuthState{}, err
	}
	var state models.AuthState
	err = c.doJSON(ctx, http.MethodPost, c.endpoint("auth", "login"), credentials, &state)
	return state, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, c.endpoint("auth", "logout"), nil, nil)
}

// RefreshSession calls the refresh endpoint directly. Callers that want to share an in-flight
// refresh go through Coordinator instead.
func (c *Client) RefreshSession(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, c.endpoint(c.refreshPath), struct{}{}, nil)
}

func (c *Client) AuthState(ctx context.Context) (models.AuthState, error) {
	var state models.AuthState
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("auth", "auth-state"), nil, &state)
	return state, err
}

func (c *Client) ChoosePassword(ctx context.Context, userID int, password string) error {
	body := struct {
		Password string `json:"password"`
	}{Password: password}
	return c.doJSON(ctx, http.MethodPut, c.endpoint("user", strconv.Itoa(userID), "choose-password"), body, nil)
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("user", "me"), nil, &user)
	return user, err
}
