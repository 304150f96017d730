// Package addressbook reads a user's saved shipping addresses from the user
// profile service.
package addressbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Client talks to the user profile service.
type Client struct {
	http    httpclient.Doer
	baseURL string
}

// NewClient creates a client for the user service at baseURL.
func NewClient(doer httpclient.Doer, baseURL string) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// address is the user service representation of a saved address.
type address struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
	IsDefault    bool   `json:"is_default"`
}

func (a address) toDomain() domain.SavedAddress {
	street := a.AddressLine1
	if a.AddressLine2 != "" {
		street += ", " + a.AddressLine2
	}
	return domain.SavedAddress{
		ID: a.ID,
		ShippingAddress: domain.ShippingAddress{
			Country:     a.CountryCode,
			State:       a.State,
			City:        a.City,
			Street:      street,
			ZipCode:     a.PostalCode,
			AddressType: a.Label,
		},
	}
}

// SavedAddresses returns the addresses saved by userID in the order the user
// service lists them. An anonymous session has none.
func (c *Client) SavedAddresses(ctx context.Context, userID string) ([]domain.SavedAddress, error) {
	if userID == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/users/%s/addresses", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create addresses request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch saved addresses: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, "user service")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read saved addresses: %w", err)
	}

	list, err := decodeAddresses(body)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SavedAddress, 0, len(list))
	for _, a := range list {
		out = append(out, a.toDomain())
	}
	return out, nil
}

// decodeAddresses accepts a bare array or one wrapped in {"data": [...]}.
func decodeAddresses(body []byte) ([]address, error) {
	var list []address
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Data []address `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode saved addresses: %w", err)
	}
	return envelope.Data, nil
}
