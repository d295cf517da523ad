package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("access token invalid")
	ErrTokenExpired = errors.New("access token expired")
)

// accessClaims refleja los claims de un access token estilo GoTrue.
type accessClaims struct {
	Email        string `json:"email"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// ParseAccessToken extrae la Identity y la expiración de un access token.
// Con secret vacío el token se decodifica sin verificar firma (modo cliente,
// el token viene del propio proveedor); con secret se exige HS256 válido.
func ParseAccessToken(tokenString, secret string) (Identity, time.Time, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, time.Time{}, ErrTokenInvalid
	}

	var claims accessClaims
	if secret == "" {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
			return Identity{}, time.Time{}, ErrTokenInvalid
		}
	} else {
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return Identity{}, time.Time{}, ErrTokenExpired
			}
			return Identity{}, time.Time{}, ErrTokenInvalid
		}
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, time.Time{}, ErrTokenInvalid
	}

	name := claims.UserMetadata.FullName
	if name == "" {
		name = claims.UserMetadata.Name
	}

	id := Identity{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      name,
		AvatarURL: claims.UserMetadata.AvatarURL,
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return id, expiresAt, nil
}
