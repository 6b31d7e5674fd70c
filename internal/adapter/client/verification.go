package client

import (
	"context"
	"net/http"

	"github.com/simaogato/settlement-backend/internal/domain"
)

// VerificationClient implements domain.VerificationAuthority
type VerificationClient struct {
	client *Client
}

// NewVerificationClient creates a new VerificationClient
func NewVerificationClient(client *Client) *VerificationClient {
	return &VerificationClient{client: client}
}

// CreateVerificationRequest registers a pending payment for approval
func (c *VerificationClient) CreateVerificationRequest(ctx context.Context, req domain.VerificationRequest) error {
	return c.client.do(ctx, http.MethodPost, "/api/verification/request", req, nil)
}
