package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Context keys for user information
const (
	ContextKeyUserID   = "user_id"
	ContextKeyEmail    = "email"
	ContextKeyRole     = "role"
	ContextKeyTenantID = "tenant_id"
)

// Claims is the access token payload
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds configuration for JWT middleware
type JWTConfig struct {
	Secret string
	Issuer string
	// CookieName is read when no Authorization header is present
	CookieName string
	// SkipPaths are matched with matchPath
	SkipPaths []string
	// OnUnauthorized replaces the JSON 401, e.g. to redirect pages to /login
	OnUnauthorized func(c *gin.Context, code, message string)
}

// GenerateToken signs an HS256 access token
func GenerateToken(secret, issuer string, ttl time.Duration, claims Claims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken validates tokenString and returns its claims
func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func extractToken(c *gin.Context, cookieName string) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return "", ErrInvalidToken
		}
		token := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if token == "" {
			return "", ErrInvalidToken
		}
		return token, nil
	}

	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}

// JWTMiddleware validates the bearer token or session cookie and injects the claims
func JWTMiddleware(config *JWTConfig) gin.HandlerFunc {
	unauthorized := func(c *gin.Context, code, message string) {
		if config.OnUnauthorized != nil {
			config.OnUnauthorized(c, code, message)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(code, message))
	}

	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if matchPath(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		tokenString, err := extractToken(c, config.CookieName)
		if err != nil {
			if errors.Is(err, ErrMissingToken) {
				unauthorized(c, "MISSING_TOKEN", "Authorization header is required")
				return
			}
			unauthorized(c, "INVALID_TOKEN", "Invalid authorization header format")
			return
		}

		claims, err := ParseToken(config.Secret, config.Issuer, tokenString)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				unauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
				return
			}
			unauthorized(c, "INVALID_TOKEN", "Invalid access token")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyTenantID, claims.TenantID)

		ctx := logger.ContextWith(c.Request.Context(), logger.UserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(logger.ContextWith(ctx, logger.TenantIDKey, claims.TenantID))

		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, ok := GetRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
			return
		}

		for _, r := range roles {
			if roleStr == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden("Insufficient permissions"))
	}
}

// RequireTenant rejects tokens that are not bound to a tenant
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenantID, ok := GetTenantID(c); !ok || tenantID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Forbidden("Tenant context required"))
			return
		}
		c.Next()
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyUserID)
}

// GetEmail extracts email from gin context
func GetEmail(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyEmail)
}

// GetRole extracts role from gin context
func GetRole(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyRole)
}

// GetTenantID extracts tenant ID from gin context
func GetTenantID(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyTenantID)
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// matchPath matches exact paths, or prefixes when pattern ends with "*"
func matchPath(path, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}
