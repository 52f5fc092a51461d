package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/socialpost/postctl/internal/models"
)

type authURLResponse struct {
	URL string `json:"url"`
}

// FacebookAuthURL returns the address where the user grants the application access to their pages.
func (c *Client) FacebookAuthURL(ctx context.Context) (string, error) {
	var res authURLResponse
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("auth", "facebook", "url"), nil, &res)
	if err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("the api did not return a facebook authorization url")
	}
	return res.URL, nil
}

// FacebookAccountAuthURL returns the authorization address for a specific social account.
func (c *Client) FacebookAccountAuthURL(ctx context.Context, accountID int) (string, error) {
	var res authURLResponse
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("oauth", "facebook", "auth", strconv.Itoa(accountID)), nil, &res)
	if err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("the api did not return an authorization url for account %d", accountID)
	}
	return res.URL, nil
}

func (c *Client) AddFacebookPage(ctx context.Context, pageID string) error {
	body := struct {
		PageID string `json:"pageId"`
	}{PageID: pageID}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("facebook", "pages"), body, nil)
}

func (c *Client) SocialAccounts(ctx context.Context) ([]models.SocialAccount, error) {
	var accounts []models.SocialAccount
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("social-accounts"), nil, &accounts)
	return accounts, err
}

func (c *Client) CreateSocialAccount(ctx context.Context, account models.SocialAccount) (models.SocialAccount, error) {
	err := account.Validate()
	if err != nil {
		return models.SocialAccount{}, err
	}
	created := account
	err = c.doJSON(ctx, http.MethodPost, c.endpoint("social-accounts"), account, &created)
	return created, err
}

func (c *Client) UpdateSocialAccount(ctx context.Context, account models.SocialAccount) (models.SocialAccount, error) {
	if account.ID == 0 {
		return models.SocialAccount{}, fmt.Errorf("cannot update a social account without an id")
	}
	err := account.Validate()
	if err != nil {
		return models.SocialAccount{}, err
	}
	updated := account
	err = c.doJSON(ctx, http.MethodPut, c.endpoint("social-accounts", strconv.Itoa(account.ID)), account, &updated)
	return updated, err
}
