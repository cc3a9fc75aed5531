package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/scolab/backend/core"
	"github.com/scolab/backend/core/deliverable"
	"github.com/scolab/backend/core/user"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "Bearer "
	tokenAudience    = "scolab"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the identity provider; GroupIDs lists the groups the subject belongs to.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

func (c Claims) User() user.User {
	return user.User{ID: c.Subject, Username: c.Username, Email: c.Email, Roles: c.Roles}
}

func (c Claims) Submitter() deliverable.Submitter {
	return deliverable.Submitter{UserID: c.Subject, GroupIDs: c.GroupIDs}
}

func (c Claims) Evaluator() deliverable.Evaluator {
	return deliverable.Evaluator{UserID: c.Subject, Admin: c.User().IsAdmin()}
}

func GetUserClaims(conf *core.Config, usr user.User, groupIDs ...string) *Claims {
	now := time.Now()
	ttl := conf.Server.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: usr.Username,
		Email:    usr.Email,
		Roles:    usr.Roles,
		GroupIDs: groupIDs,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(tokenStr, secretKey string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	if !claims.VerifyAudience(tokenAudience, true) {
		return nil, errors.New("invalid token audience")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// jwtMiddleware authenticates requests with a `Bearer` token and stores its Claims in the context.
func jwtMiddleware(secretKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerPrefix) || len(auth) == len(bearerPrefix) {
				return errMissingToken
			}
			claims, err := parseToken(auth[len(bearerPrefix):], secretKey)
			if err != nil {
				return errInvalidToken.WithInternal(err)
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}
