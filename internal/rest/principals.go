package rest

import (
	"context"
	"net/http"
	"net/url"
)

const servicePrincipals = "principals"

// PrincipalsAPI talks to the principals service.
type PrincipalsAPI struct {
	client *Client
}

// NewPrincipalsAPI -.
func NewPrincipalsAPI(client *Client) *PrincipalsAPI {
	return &PrincipalsAPI{client: client}
}

// GetPrincipalInfo looks up one principal by profile username. Issued with
// the caller's own credentials, it doubles as the credential check.
func (a *PrincipalsAPI) GetPrincipalInfo(ctx context.Context, cfg Config, username string) (*PrincipalInfo, error) {
	var item PrincipalInfo
	err := a.client.do(ctx, cfg, servicePrincipals, "getPrincipalInfo",
		http.MethodGet, "/principals/"+url.PathEscape(username), nil, nil, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
