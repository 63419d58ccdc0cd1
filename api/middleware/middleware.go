/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"

	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/internal/apierror"
)

// KeyHeader carries the service secret on every non-public request.
const KeyHeader = "X-NordLion-Key"

// publicPaths skip both the secret check and rate limiting so health checks and
// scrapers keep working when a client is throttled.
var publicPaths = map[string]bool{
	"/":        true,
	"/metrics": true,
}

func abort(c *gin.Context, status int, code apierror.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// RateLimitMiddleware throttles each caller with a token bucket. A caller is
// the pair of client IP and presented key, so back-office tools sharing a NAT
// address do not starve each other. A nil rate or burst disables limiting.
func RateLimitMiddleware(conf config.RateLimitConfig) gin.HandlerFunc {
	if conf.RequestsPerSecond == nil || conf.Burst == nil {
		return func(c *gin.Context) { c.Next() }
	}

	opts := &limiter.ExpirableOptions{}
	if conf.CleanupIntervalSec != nil {
		opts.DefaultExpirationTTL = time.Duration(*conf.CleanupIntervalSec) * time.Second
	}
	lmt := tollbooth.NewLimiter(*conf.RequestsPerSecond, opts)
	lmt.SetBurst(*conf.Burst)

	return func(c *gin.Context) {
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		if httpErr := tollbooth.LimitByKeys(lmt, []string{c.ClientIP(), c.GetHeader(KeyHeader)}); httpErr != nil {
			c.Header("Retry-After", "1")
			abort(c, httpErr.StatusCode, apierror.ErrRateLimited, "too many requests, slow down")
			return
		}
		c.Next()
	}
}

// SecretKeyAuthMiddleware admits requests whose KeyHeader matches secret.
// An empty secret fails closed: the server is marked secure but cannot
// authenticate anyone.
func SecretKeyAuthMiddleware(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		if len(expected) == 0 {
			abort(c, http.StatusInternalServerError, apierror.ErrInternalServer, "server.secret_key is not configured")
			return
		}

		presented := c.GetHeader(KeyHeader)
		switch {
		case presented == "":
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, KeyHeader+" header is required")
		case subtle.ConstantTimeCompare(expected, []byte(presented)) != 1:
			abort(c, http.StatusUnauthorized, apierror.ErrUnauthorized, "invalid "+KeyHeader)
		default:
			c.Next()
		}
	}
}
