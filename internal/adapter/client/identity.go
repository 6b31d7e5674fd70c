package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/simaogato/settlement-backend/internal/domain"
)

// IdentityClient implements domain.IdentityService against the user service
type IdentityClient struct {
	client *Client
}

// NewIdentityClient creates a new IdentityClient
func NewIdentityClient(client *Client) *IdentityClient {
	return &IdentityClient{client: client}
}

type personResponse struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// GetClientByID looks up a bank client
func (c *IdentityClient) GetClientByID(ctx context.Context, id int64) (*domain.Person, error) {
	return c.get(ctx, fmt.Sprintf("/api/admin/clients/%d", id))
}

// GetEmployeeByID looks up a bank employee
func (c *IdentityClient) GetEmployeeByID(ctx context.Context, id int64) (*domain.Person, error) {
	return c.get(ctx, fmt.Sprintf("/api/admin/employees/%d", id))
}

func (c *IdentityClient) get(ctx context.Context, path string) (*domain.Person, error) {
	var resp personResponse
	if err := c.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrRecordNotFound)
		}
		return nil, err
	}
	return &domain.Person{FirstName: resp.FirstName, LastName: resp.LastName}, nil
}
