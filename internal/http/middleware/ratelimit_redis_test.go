package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedServer(t *testing.T, h gin.HandlerFunc) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", h, func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func statusOf(t *testing.T, url string) int {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	res.Body.Close()
	return res.StatusCode
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	client := InitRedisRateLimiter(addr, os.Getenv("REDIS_PASSWORD"), db)
	require.NotNil(t, client)
	t.Cleanup(func() {
		redisClient = nil
		client.Close()
	})

	// odd window so reruns do not share a key
	w := time.Duration(2+time.Now().Unix()%7) * time.Second
	limit := 2
	srv := limitedServer(t, RedisRateLimit(limit, w))

	for i := 0; i < limit; i++ {
		assert.Equal(t, 200, statusOf(t, srv.URL+"/test"))
	}
	assert.Equal(t, 429, statusOf(t, srv.URL+"/test"))
}

func TestRateLimitFallsBackInProcess(t *testing.T) {
	require.Nil(t, redisClient)
	srv := limitedServer(t, RedisRateLimit(3, time.Minute))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, statusOf(t, srv.URL+"/test"))
	}
	assert.Equal(t, 429, statusOf(t, srv.URL+"/test"))
}

func TestSimpleRateLimitWindowResets(t *testing.T) {
	srv := limitedServer(t, SimpleRateLimit(1, 50*time.Millisecond))

	assert.Equal(t, 200, statusOf(t, srv.URL+"/test"))
	assert.Equal(t, 429, statusOf(t, srv.URL+"/test"))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 200, statusOf(t, srv.URL+"/test"))
}
