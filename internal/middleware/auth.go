package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"estatetoken/internal/config"
	apperrors "estatetoken/internal/errors"
)

const (
	tokenIssuer        = "estatetoken-api"
	tokenTypeAccess    = "access"
	accessTokenExpiry  = 15 * time.Minute
	userIDKey          = "userID"
	authorizationParts = 2
)

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in an access token. Tokens are issued by
// the identity service; this API only verifies them.
type JWTClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token for userID.
func GenerateAccessToken(userID string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:    userID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// ParseAccessToken validates an access token and returns its claims.
func ParseAccessToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTKey(), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	if claims.TokenType != tokenTypeAccess || claims.UserID == "" {
		return nil, fmt.Errorf("token is not an access token")
	}
	return claims, nil
}

// VerifyAccessToken returns the user ID carried by a valid access token. It
// backs the WebSocket endpoint, which receives its token as a query parameter.
func VerifyAccessToken(tokenString string) (string, error) {
	claims, err := ParseAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// AuthMiddleware verifies the bearer token and sets the user ID in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != authorizationParts || parts[0] != "Bearer" {
			AbortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := ParseAccessToken(parts[1])
		if err != nil {
			AbortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}
