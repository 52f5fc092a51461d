package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/socialpost/postctl/internal/models"
)

func (c *Client) MyPages(ctx context.Context) ([]models.Page, error) {
	var pages []models.Page
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("pages", "my-pages"), nil, &pages)
	return pages, err
}

// PageInsights returns the insights document unchanged, its shape is defined by the social platform.
func (c *Client) PageInsights(ctx context.Context, pageID string) (json.RawMessage, error) {
	var insights json.RawMessage
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("pages", pageID, "insights"), nil, &insights)
	return insights, err
}

func (c *Client) AssignUsersToPage(ctx context.Context, pageID string, userIDs []int) error {
	body := models.PageAssignment{PageID: pageID, UserIDs: userIDs}
	if body.UserIDs == nil {
		body.UserIDs = []int{}
	}
	return c.doJSON(ctx, http.MethodPost, c.endpoint("pages", "assign-users"), body, nil)
}
