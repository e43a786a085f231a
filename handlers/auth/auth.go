package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// ErrDisabled is returned when no signing secret has been configured.
var ErrDisabled = errors.New("token auth is not configured")

var (
	mu        sync.RWMutex
	jwtSecret []byte
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// RoleCatalogAdmin may upload and delete frames.
const RoleCatalogAdmin = "catalog-admin"

// Init sets the HMAC signing secret. An empty secret disables token auth.
func Init(secret string) {
	mu.Lock()
	jwtSecret = []byte(secret)
	mu.Unlock()

	if secret == "" {
		logrus.Warn("JWT_SECRET is not set, catalog administration is open to everyone")
		return
	}
	logrus.Info("Catalog administration requires a bearer token")
}

// Enabled reports whether a signing secret is configured.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(jwtSecret) > 0
}

func secret() []byte {
	mu.RLock()
	defer mu.RUnlock()
	return jwtSecret
}

// IssueToken signs a catalog administration token for subject.
func IssueToken(subject string, ttl time.Duration) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", ErrDisabled
	}
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: RoleCatalogAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func ParseJWT(tokenString string) (*AppClaims, error) {
	key := secret()
	if len(key) == 0 {
		return nil, ErrDisabled
	}
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
