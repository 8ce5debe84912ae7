package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-signing-key-0123456789"

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("reader-1", RoleDevice, "rfidaccess", testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	access, err := Parse(pair.AccessToken, testKey, "rfidaccess")
	require.NoError(t, err)
	assert.Equal(t, "reader-1", access.Subject)
	assert.Equal(t, KindAccess, access.Kind)
	assert.Equal(t, RoleDevice, access.Role)

	refresh, err := Parse(pair.RefreshToken, testKey, "rfidaccess")
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, refresh.Kind)
	assert.NotEqual(t, access.ID, refresh.ID)

	_, err = Parse(pair.AccessToken, "other-key", "rfidaccess")
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	pair, err := Issue("reader-1", RoleDevice, "", testKey, -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, testKey, "")
	assert.Error(t, err)
}

func TestDeviceAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", DeviceAuth(testKey, "rfidaccess"), func(c *gin.Context) {
		claims := c.MustGet(ClaimsKey).(Claims)
		c.String(http.StatusOK, claims.Subject)
	})
	pair, err := Issue("reader-1", RoleDevice, "rfidaccess", testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+pair.RefreshToken).Code)

	w := do("Bearer " + pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reader-1", w.Body.String())
}
