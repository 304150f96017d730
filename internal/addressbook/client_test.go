package addressbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(httpclient.New(httpclient.NoRetryConfig()), server.URL+"/")
}

func TestSavedAddresses_Envelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/user-1/addresses", r.URL.Path)
		assert.Equal(t, "user-1", r.Header.Get("X-User-ID"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":"a1","label":"Work","address_line1":"Kungsgatan 2","city":"Stockholm","postal_code":"11143","country_code":"SE"},
			{"id":"a2","label":"Home","address_line1":"Storgatan 5","address_line2":"lgh 1101","city":"Uppsala","postal_code":"75320","country_code":"SE"}
		]}`))
	})

	saved, err := client.SavedAddresses(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, "a2", saved[1].ID)
	assert.Equal(t, "Storgatan 5, lgh 1101", saved[1].Street)
	assert.Equal(t, "75320", saved[1].ZipCode)
	assert.Equal(t, "SE", saved[1].Country)

	def, ok := domain.DefaultAddress(saved)
	require.True(t, ok)
	assert.Equal(t, "Uppsala", def.City)
}

func TestSavedAddresses_BareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a1","address_line1":"Main St 1","city":"Hargeisa","postal_code":"0000","country_code":"SO"}]`))
	})

	saved, err := client.SavedAddresses(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Hargeisa", saved[0].City)
}

func TestSavedAddresses_Anonymous(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("anonymous lookups must not reach the user service")
	})

	saved, err := client.SavedAddresses(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSavedAddresses_UnknownUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	saved, err := client.SavedAddresses(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSavedAddresses_ServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid user id"}}`))
	})

	_, err := client.SavedAddresses(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user id")
}
