package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromUser_NeverExposesHash(t *testing.T) {
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := &models.User{
		ID:           "0190a1b2-0000-7000-8000-000000000001",
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$12$secret",
		FirstName:    "Alice",
		LastName:     "Smith",
		IsActive:     true,
		CreatedAt:    joined,
	}

	b, err := json.Marshal(FromUser(u))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	assert.ElementsMatch(t, []string{
		"id", "username", "email", "first_name", "last_name", "full_name",
		"is_active", "email_verified", "date_joined", "last_login",
	}, keys(m))
	assert.Equal(t, "Alice Smith", m["full_name"])
	assert.Nil(t, m["last_login"])
	assert.Equal(t, "2024-05-01T12:00:00Z", m["date_joined"])
	assert.NotContains(t, string(b), "secret")
}

func TestRefreshResponse_OmitsEmptyRefresh(t *testing.T) {
	b, err := json.Marshal(RefreshResponse{Access: "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"access":"a"}`, string(b))
}

func TestUpdateProfileRequest_Partial(t *testing.T) {
	var r UpdateProfileRequest
	require.NoError(t, json.Unmarshal([]byte(`{"first_name":"Bo"}`), &r))

	p := r.ToModel()
	require.NotNil(t, p.FirstName)
	assert.Equal(t, "Bo", *p.FirstName)
	assert.Nil(t, p.Email)
	assert.Nil(t, p.LastName)
}

func TestStatus(t *testing.T) {
	s := Status()
	assert.Equal(t, MsgServiceRunning, s.Status)
	assert.Equal(t, "1.0.0", s.Version)
	assert.Len(t, s.Endpoints, 6)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
