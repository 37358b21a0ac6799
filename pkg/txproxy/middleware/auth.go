// Package middleware holds the Gin handlers placed ahead of the validation
// layer in the proxy's request chain: health probe, inbound JWT auth, and
// the optional per-client rate limiter.
package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/cyw0ng95/txproxy/pkg/common"
)

const bearerPrefix = "Bearer "

func abort401(c *gin.Context, reason string) {
	c.String(401, reason)
	c.Abort()
}

// authClockSkew bounds how far an inbound token's iat may drift from
// wall-clock time in either direction before it is rejected.
const authClockSkew = 60 * time.Second

// AuthConfig configures the inbound JWT auth layer.
type AuthConfig struct {
	Secret []byte
	Logger *common.Logger
}

// skewTolerantClaims wraps jwt.RegisteredClaims but no-ops Valid() so that
// jwt.ParseWithClaims never applies its own built-in iat-in-the-future
// rejection: only this package's authClockSkew window governs acceptance,
// letting a future iat within the documented window through.
type skewTolerantClaims struct {
	jwt.RegisteredClaims
}

func (skewTolerantClaims) Valid() error {
	return nil
}

// Auth returns a gin.HandlerFunc that validates a Bearer JWT on every
// request, modeled on the rate-limiter middleware shape in
// cmd/v2access/middleware.go: a config struct plus a constructor returning a
// handler that aborts early on rejection.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			abort401(c, "Missing or invalid authorization header")
			return
		}
		raw := strings.TrimPrefix(header, bearerPrefix)

		claims := &skewTolerantClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return cfg.Secret, nil
		})
		if err != nil {
			cfg.Logger.Warn("inbound JWT rejected: %v", err)
			abort401(c, "JWT decoding error: "+err.Error())
			return
		}

		if claims.IssuedAt == nil {
			abort401(c, "Invalid issuance timestamp")
			return
		}
		skew := time.Since(claims.IssuedAt.Time)
		if skew > authClockSkew || skew < -authClockSkew {
			abort401(c, "Invalid issuance timestamp")
			return
		}

		c.Next()
	}
}
