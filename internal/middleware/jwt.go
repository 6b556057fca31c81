package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mossy-p/whiteboard-signaling/internal/models"
)

// IdentityKey is the gin context key holding the verified *models.Identity
const IdentityKey = "identity"

var ErrNoToken = errors.New("no token")

// JWTClaims represents the claims carried by whiteboard access tokens
type JWTClaims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

func (c *JWTClaims) Identity() *models.Identity {
	return &models.Identity{UserID: c.UserID, Email: c.Email, DisplayName: c.DisplayName}
}

// IssueToken signs an HS256 token for id that expires after ttl.
func IssueToken(secret string, id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(secret, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// bearer extracts the token from "Authorization: Bearer <token>" or, for
// browser websocket upgrades that cannot set headers, the token query param.
func bearer(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}
	if q := c.Query("token"); q != "" {
		return q, nil
	}
	return "", ErrNoToken
}

// JWTAuth rejects requests without a valid token.
func JWTAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearer(c)
		if err != nil {
			msg := "Authorization header required"
			if !errors.Is(err, ErrNoToken) {
				msg = "Invalid authorization header format"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		claims, err := ParseToken(jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(IdentityKey, claims.Identity())
		c.Next()
	}
}

// OptionalJWT attaches an identity when a valid token is present. Requests
// without a token pass through anonymously; a bad token is always rejected.
func OptionalJWT(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearer(c)
		if errors.Is(err, ErrNoToken) {
			c.Next()
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := ParseToken(jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set(IdentityKey, claims.Identity())
		c.Next()
	}
}

// IdentityFrom returns the identity attached by JWTAuth or OptionalJWT.
func IdentityFrom(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*models.Identity)
	return id, ok
}
