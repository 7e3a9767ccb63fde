package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/profile"
)

const (
	contextTokenKey   = "token"
	contextProfileKey = "profile"
	contextSessionKey = "session"

	// viewingHeader lets a platform admin oversee another institution, read-only.
	viewingHeader = "X-Viewing-Institution"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt  int64  `json:"oriat,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	InstitutionID string `json:"institution_id,omitempty"`
}

type jwtConfig struct {
	middleware.JWTConfig
	issuer       string
	expiry       time.Duration
	refreshDelta time.Duration
}

func newJWTConfig(conf *core.Config) jwtConfig {
	return jwtConfig{
		JWTConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
		issuer:       conf.AppName,
		expiry:       conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

func (jc jwtConfig) claims(p profile.Profile, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    jc.issuer,
			Subject:   p.ID,
			ExpiresAt: now.Add(jc.expiry).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:  oriat,
		Email:         p.Email,
		Role:          p.Role,
		InstitutionID: p.InstitutionID,
	}
}

func (jc jwtConfig) sign(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(jc.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jc.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// GenerateToken generates a signed JWT token string for p.
func GenerateToken(conf *core.Config, p profile.Profile) (string, error) {
	jc := newJWTConfig(conf)
	return jc.sign(jc.claims(p))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextProfile(ctx echo.Context) (profile.Profile, error) {
	if p, ok := ctx.Get(contextProfileKey).(profile.Profile); ok {
		return p, nil
	}
	return profile.Profile{}, errUnauthorized
}

// getSession returns the acting context of the request; anonymous requests get an empty Session.
func getSession(ctx echo.Context) core.Session {
	if sess, ok := ctx.Get(contextSessionKey).(core.Session); ok {
		return sess
	}
	return core.Session{}
}

// sessionMiddleware resolves the profile behind the JWT and stores the request's core.Session.
// Role and institution are read from the store, not from the token, so they take effect immediately.
func sessionMiddleware(svc *profile.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			p, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if core.IsNotFound(err) {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding profile by ID")
			}
			if !p.IsActive {
				return errAccountDeactivated
			}

			sess := p.Session()
			if viewing := core.CleanString(ctx.Request().Header.Get(viewingHeader)); viewing != "" && sess.IsAdmin() {
				sess = sess.WithViewing(viewing)
			}
			ctx.Set(contextProfileKey, p)
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func (jc jwtConfig) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	p, err := getContextProfile(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context profile")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jc.refreshDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := jc.sign(jc.claims(p, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
