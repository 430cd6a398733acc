package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
	"github.com/yusufsyaifudin/katalog/pkg/tracer"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = svcerr.ErrUnauthorized

const MsgUnauthorized = "unauthorized"

// AdminSubject is the only subject a session token is issued for.
const AdminSubject = "admin"

type Service interface {
	Login(ctx context.Context, in InputLogin) (out OutLogin, err error)
	Verify(ctx context.Context, in InputVerify) (out OutVerify, err error)
}

type InputLogin struct {
	Password string
}

type OutLogin struct {
	Token     string
	ExpiresAt time.Time
}

type InputVerify struct {
	Token string
}

type OutVerify struct {
	Subject   string
	ExpiresAt time.Time
}

type Config struct {
	// PasswordHash is the bcrypt hash of the admin password, the plain password is never configured.
	PasswordHash string        `validate:"required"`
	Secret       []byte        `validate:"required,min=32"`
	TTL          time.Duration `validate:"required,gt=0"`
	Issuer       string        `validate:"required"`

	Now func() time.Time `validate:"-"`
}

type JWT struct {
	Config Config
}

var _ Service = (*JWT)(nil)

func New(cfg Config) (*JWT, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &JWT{Config: cfg}, nil
}

func (j *JWT) Login(ctx context.Context, in InputLogin) (out OutLogin, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "authsvc.Login")
	defer span.End()

	err = bcrypt.CompareHashAndPassword([]byte(j.Config.PasswordHash), []byte(in.Password))
	if err != nil {
		ylog.Info(ctx, "admin login rejected", ylog.KV("error", err))
		err = svcerr.Wrap(ErrUnauthorized, MsgUnauthorized, err)
		return
	}

	now := j.Config.Now()
	exp := now.Add(j.Config.TTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    j.Config.Issuer,
		Subject:   AdminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	signed, err := token.SignedString(j.Config.Secret)
	if err != nil {
		err = fmt.Errorf("cannot sign admin token: %w", err)
		return
	}

	out = OutLogin{
		Token:     signed,
		ExpiresAt: time.Unix(exp.Unix(), 0).UTC(),
	}
	return
}

func (j *JWT) Verify(ctx context.Context, in InputVerify) (out OutVerify, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "authsvc.Verify")
	defer span.End()

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(in.Token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return j.Config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.Config.Issuer),
		jwt.WithSubject(AdminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.Config.Now),
	)
	if err != nil {
		ylog.Debug(ctx, "admin token rejected", ylog.KV("error", err))
		err = svcerr.Wrap(ErrUnauthorized, MsgUnauthorized, err)
		return
	}

	if claims.ExpiresAt == nil {
		err = svcerr.Wrap(ErrUnauthorized, MsgUnauthorized, errors.New("token without expiry"))
		return
	}

	out = OutVerify{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	return
}
