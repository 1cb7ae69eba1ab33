package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/attested/roster/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireDocker skips unless the suite is explicitly enabled; the
// testcontainer needs a Docker daemon.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") == "" {
		t.Skip("set RUN_INTEGRATION_TESTS=1 to run integration tests")
	}
}

func TestAccountLifecycle(t *testing.T) {
	requireDocker(t)

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts := NewTestServer(testDB.DB)
	defer ts.Close()

	_, err = SeedUser(ctx, testDB.Pool, "root", "root@example.com", "rootpw", models.RoleAdmin)
	require.NoError(t, err)

	username := UniqueUsername("bob")

	t.Run("availability check is anonymous", func(t *testing.T) {
		resp, err := ts.Request(http.MethodGet, "/users/"+username+"/available", nil, "", "")
		require.NoError(t, err)
		var body map[string]bool
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.True(t, body["available"])
	})

	var inviteCode string

	t.Run("admin creates account", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPost, "/users/"+username, map[string]string{
			"email":    TestEmail(username),
			"password": "tops3cret",
		}, "root", "rootpw")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.Equal(t, models.StateNew, body["state"])
		inviteCode, _ = body["invite_code"].(string)
		require.NotEmpty(t, inviteCode)
	})

	t.Run("anonymous create is forbidden", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPost, "/users/intruder", map[string]string{
			"email": "intruder@example.com",
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		msg, err := GetErrorMessage(resp)
		require.NoError(t, err)
		assert.Equal(t, "Not authorized to modify users", msg)
	})

	t.Run("wrong invite code is rejected", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPost, "/users/"+username+"/confirm", map[string]string{
			"invite_code": "not-the-code",
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("invite code activates account", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPost, "/users/"+username+"/confirm", map[string]string{
			"invite_code": inviteCode,
		}, "", "")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.Equal(t, models.StateActive, body["state"])
		assert.Empty(t, body["invite_code"])
	})

	t.Run("invite code is single use", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPost, "/users/"+username+"/confirm", map[string]string{
			"invite_code": inviteCode,
		}, "", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("owner reads own record", func(t *testing.T) {
		resp, err := ts.Request(http.MethodGet, "/users/"+username, nil, username, "tops3cret")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("owner cannot read other accounts", func(t *testing.T) {
		resp, err := ts.Request(http.MethodGet, "/users/root", nil, username, "tops3cret")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	var tokenSecret string

	t.Run("admin issues named token", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPut, "/users/"+username+"/tokens/ci-deploy", nil, "root", "rootpw")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body map[string]string
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.Equal(t, "ci-deploy", body["name"])
		tokenSecret = body["secret"]
		assert.NotEmpty(t, tokenSecret)
	})

	t.Run("duplicate token name conflicts", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPut, "/users/"+username+"/tokens/ci-deploy", nil, "root", "rootpw")
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("owner lists own tokens", func(t *testing.T) {
		resp, err := ts.Request(http.MethodGet, "/users/"+username+"/tokens", nil, username, "tops3cret")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var tokens map[string]string
		require.NoError(t, ParseJSONResponse(resp, &tokens))
		assert.Equal(t, tokenSecret, tokens["ci-deploy"])
	})

	t.Run("owner cannot revoke own token", func(t *testing.T) {
		resp, err := ts.Request(http.MethodDelete, "/users/"+username+"/tokens/ci-deploy", nil, username, "tops3cret")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("admin revokes token", func(t *testing.T) {
		resp, err := ts.Request(http.MethodDelete, "/users/"+username+"/tokens/ci-deploy", nil, "root", "rootpw")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("admin updates account", func(t *testing.T) {
		resp, err := ts.Request(http.MethodPut, "/users/"+username, map[string]string{
			"email": "renamed@example.com",
		}, "root", "rootpw")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("admin deletes account", func(t *testing.T) {
		resp, err := ts.Request(http.MethodDelete, "/users/"+username, nil, "root", "rootpw")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, ParseJSONResponse(resp, &body))
		assert.Equal(t, true, body["ok"])
	})
}

func TestStaleAccountSweep(t *testing.T) {
	requireDocker(t)

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	repo := testDB.NewUserRepository()

	require.NoError(t, SeedStaleUser(ctx, testDB.Pool, UniqueUsername("stale"), "stale@example.com", 72*time.Hour))
	fresh, err := SeedUnconfirmedUser(ctx, testDB.Pool, UniqueUsername("fresh"), "fresh@example.com", "fresh-code")
	require.NoError(t, err)

	// Cutoff at 48h: only the 72h-old account qualifies.
	deleted, err := repo.DeleteStaleUnconfirmed(ctx, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
}
