package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	memberIDKey = "memberId"
	adminKey    = "admin"
)

// Claims is the JWT payload accepted by the admin API.
type Claims struct {
	MemberID int64 `json:"memberId"`
	Admin    bool  `json:"admin"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for memberID valid for ttl.
func GenerateToken(secret []byte, memberID int64, admin bool, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := Claims{
		MemberID: memberID,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			RespondWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(memberIDKey, claims.MemberID)
		c.Set(adminKey, claims.Admin)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			RespondWithError(c, http.StatusForbidden, "Administrator privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetMemberID(c *gin.Context) (int64, bool) {
	memberID, exists := c.Get(memberIDKey)
	if !exists {
		return 0, false
	}
	id, ok := memberID.(int64)
	return id, ok
}

func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}

// SetIdentity stores an authenticated identity on the context. Used by tests and
// trusted internal routes.
func SetIdentity(c *gin.Context, memberID int64, admin bool) {
	c.Set(memberIDKey, memberID)
	c.Set(adminKey, admin)
}
