package security

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	ErrSubjectMismatch = errors.New("token subject does not match user")
	ErrDeviceMismatch  = errors.New("token device does not match device")
)

// Options controls signing and token lifetime.
type Options struct {
	Secret []byte        // HMAC key
	Alg    string        // HS256/HS384/HS512, default HS256
	TTL    time.Duration // default 24h
}

// Claims carried by a login secret. Device is optional; when set, the token is
// only valid for that device.
type Claims struct {
	Device string `json:"device,omitempty"`
	jwtlib.RegisteredClaims
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 24 * time.Hour}
}

// Generate signs a login secret for user (and optionally device).
func Generate(opts Options, user, device string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := Claims{
		Device: device,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return signed, exp, nil
}

// Verify parses token and checks its signature and time claims.
func Verify(opts Options, token string) (*Claims, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	_, err = jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		return opts.Secret, nil
	}, jwtlib.WithValidMethods([]string{method.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "verify token")
	}
	return claims, nil
}

// JWTAuthenticator accepts a login when secret_key is a valid token issued
// for the user token.
type JWTAuthenticator struct {
	opts Options
}

func NewJWTAuthenticator(opts Options) *JWTAuthenticator {
	return &JWTAuthenticator{opts: opts}
}

func (a *JWTAuthenticator) Authenticate(user, device, secret string) error {
	claims, err := Verify(a.opts, secret)
	if err != nil {
		return err
	}
	if claims.Subject != user {
		return errors.Wrapf(ErrSubjectMismatch, "sub=%q user=%q", claims.Subject, user)
	}
	if claims.Device != "" && claims.Device != device {
		return errors.Wrapf(ErrDeviceMismatch, "device=%q", device)
	}
	return nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errors.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
