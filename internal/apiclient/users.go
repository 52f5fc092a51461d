package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/socialpost/postctl/internal/models"
)

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("user"), nil, &users)
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, user models.User) error {
	err := user.Validate()
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("user"), user, nil)
}

// UpdateUser addresses the user by email, which is how the API identifies users for updates.
func (c *Client) UpdateUser(ctx context.Context, user models.User) error {
	err := user.Validate()
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, c.endpoint("user", user.Email), user, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userID int) error {
	return c.doJSON(ctx, http.MethodDelete, c.endpoint("user", strconv.Itoa(userID)), nil, nil)
}
