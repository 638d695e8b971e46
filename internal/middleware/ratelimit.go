package middleware

import (
	"fmt"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

// RateLimit throttles a route group per client IP. Each call owns its own
// in-memory bucket, so login and signup are limited independently.
func RateLimit(limit uint, window time.Duration) gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  window,
		Limit: limit,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			retry := time.Until(info.ResetTime).Round(time.Second)
			if retry < time.Second {
				retry = time.Second
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())))
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, fmt.Sprintf("too many attempts, retry in %s", retry)))
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
