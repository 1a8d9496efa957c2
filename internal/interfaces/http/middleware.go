package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garyjia/invoicing/internal/application/service"
)

const (
	requestIDKey  = "request_id"
	subjectKey    = "subject"
	requestHeader = "X-Request-ID"
)

// AuthConfig holds API token settings
type AuthConfig struct {
	Secret string
	Issuer string
}

// Claims represents the JWT claims of an API token
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 API token for subject
func GenerateToken(cfg AuthConfig, subject string, ttl time.Duration, now time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// JWTAuthMiddleware rejects requests without a valid bearer token
func JWTAuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	var opts []jwt.ParserOption
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "authorization header is required"})
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "invalid authorization header format"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(cfg.Secret), nil
		}, opts...)

		if err != nil || !token.Valid {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: msg})
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// requestIDMiddleware tags every request with an id, reusing the caller's
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestHeader, id)
		c.Next()
	}
}

// clientCacheMiddleware scopes client lookups to one request
func clientCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cache := service.NewClientCache()
		c.Request = c.Request.WithContext(service.WithClientCache(c.Request.Context(), cache))
		defer cache.Clear()
		c.Next()
	}
}
