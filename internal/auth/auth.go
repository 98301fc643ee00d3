package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/akolanti/StudyMentor/internal/config"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/golang-jwt/jwt/v5"
)

const (
	MsgTokenMissing = "Token is missing!"
	MsgTokenInvalid = "Token is invalid or expired!"
)

// Verifier turns a bearer token into the caller's principal or fails with an AuthError.
type Verifier interface {
	Verify(ctx context.Context, token string) (commonModels.Principal, error)
}

type claims struct {
	UID    string `json:"uid,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c claims) userId() string {
	switch {
	case c.UID != "":
		return c.UID
	case c.UserID != "":
		return c.UserID
	default:
		return c.Subject
	}
}

type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (commonModels.Principal, error) {
	const op = "auth.jwt"
	if token == "" {
		return commonModels.Principal{}, apperr.Auth(op, MsgTokenMissing)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return commonModels.Principal{}, &apperr.Error{Kind: apperr.KindAuth, Op: op, Message: MsgTokenInvalid, Err: err}
	}
	if c.userId() == "" {
		return commonModels.Principal{}, apperr.Auth(op, MsgTokenInvalid)
	}
	return commonModels.Principal{UserId: c.userId(), Email: c.Email}, nil
}

// Issue signs a token for the principal. Used by tooling and tests, the service never mints tokens itself.
func (v *JWTVerifier) Issue(p commonModels.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UserID: p.UserId,
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserId,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// StaticTokenVerifier accepts one shared token and maps it to a fixed principal.
type StaticTokenVerifier struct {
	token     []byte
	principal commonModels.Principal
}

func NewStaticTokenVerifier(token, userId string) *StaticTokenVerifier {
	return &StaticTokenVerifier{token: []byte(token), principal: commonModels.Principal{UserId: userId}}
}

func (v *StaticTokenVerifier) Verify(ctx context.Context, token string) (commonModels.Principal, error) {
	const op = "auth.static"
	if token == "" {
		return commonModels.Principal{}, apperr.Auth(op, MsgTokenMissing)
	}
	if subtle.ConstantTimeCompare([]byte(token), v.token) != 1 {
		return commonModels.Principal{}, apperr.Auth(op, MsgTokenInvalid)
	}
	return v.principal, nil
}

func WithPrincipal(ctx context.Context, p commonModels.Principal) context.Context {
	return context.WithValue(ctx, config.PRINCIPAL_KEY, p)
}

func PrincipalFrom(ctx context.Context) (commonModels.Principal, bool) {
	p, ok := ctx.Value(config.PRINCIPAL_KEY).(commonModels.Principal)
	return p, ok && p.UserId != ""
}
