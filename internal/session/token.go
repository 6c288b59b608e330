package session

import (
	"crypto"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jws"
	"github.com/lestrrat-go/jwx/jwt"
)

const (
	EncryptionAlgorithmDefault = jwa.RS512
	IssuerDefault              = "clinic_booking"
	AudienceDefault            = "clinic_booking"
	SessionTokenType           = "session"
	SessionTokenExpiration     = CookieMaxAge

	roleClaim      = "role"
	emailClaim     = "email"
	nameClaim      = "name"
	patientIDClaim = "pid"
	doctorIDClaim  = "did"
)

// TokenOption determines the Functional Options used to create a new Token.
type TokenOption func(token jwt.Token) error

// GetDefaultSessionTokenOptions returns the common TokenOption used to create a new session token
// plus the given new ones options.
func GetDefaultSessionTokenOptions(opts ...TokenOption) []TokenOption {
	return append([]TokenOption{
		WithIssuer(IssuerDefault),
		WithType(SessionTokenType),
		WithAudience([]string{AudienceDefault}),
		WithJTI(),
		WithIssuedAt(),
		WithExpiration(SessionTokenExpiration),
	}, opts...)
}

// NewJwtToken creates a new Token using the given options.
func NewJwtToken(opts ...TokenOption) (jwt.Token, error) {
	jwtToken := jwt.New()
	for _, opt := range opts {
		if err := opt(jwtToken); err != nil {
			return nil, err
		}
	}
	return jwtToken, nil
}

// WithIssuer determines the issuer of the token.
func WithIssuer(issuer string) TokenOption {
	return func(token jwt.Token) error {
		return token.Set(jwt.IssuerKey, issuer)
	}
}

// WithSubject determines the subject of the token.
func WithSubject(subject string) TokenOption {
	return func(token jwt.Token) error {
		return token.Set(jwt.SubjectKey, subject)
	}
}

// WithType determines the token type.
func WithType(typ string) TokenOption {
	return func(token jwt.Token) error {
		return token.Set("typ", typ)
	}
}

// WithExpiration determines the token expiration time.
func WithExpiration(duration time.Duration) TokenOption {
	return func(token jwt.Token) error {
		return token.Set(jwt.ExpirationKey, time.Now().Add(duration))
	}
}

// WithJTI sets a unique UUID to the token.
func WithJTI() TokenOption {
	return func(token jwt.Token) error {
		genUUID, err := uuid.NewRandom()
		if err != nil {
			return err
		}
		return token.Set(jwt.JwtIDKey, genUUID.String())
	}
}

// WithAudience determines the token audience.
func WithAudience(audience []string) TokenOption {
	return func(token jwt.Token) error {
		return token.Set(jwt.AudienceKey, audience)
	}
}

// WithIssuedAt sets the current date to token.
func WithIssuedAt() TokenOption {
	return func(token jwt.Token) error {
		return token.Set(jwt.IssuedAtKey, time.Now())
	}
}

// WithClaim sets a private claim.
func WithClaim(name string, value interface{}) TokenOption {
	return func(token jwt.Token) error {
		return token.Set(name, value)
	}
}

// withSession sets the claims describing the given session.
func withSession(s Session) []TokenOption {
	opts := []TokenOption{
		WithSubject(s.UserID().String()),
		WithClaim(roleClaim, string(s.Role())),
		WithClaim(nameClaim, s.DisplayName()),
	}
	switch v := s.(type) {
	case PatientSession:
		opts = append(opts, WithClaim(emailClaim, v.Email), WithClaim(patientIDClaim, v.PatientID.String()))
	case DoctorSession:
		opts = append(opts, WithClaim(emailClaim, v.Email), WithClaim(doctorIDClaim, v.DoctorID.String()))
	}
	return opts
}

// getThumbprint gets the thumbprint of the private key in order to generate the token headers.
func getThumbprint(privateKey rsa.PrivateKey) (string, error) {
	jwKey, err := jwk.New(privateKey)
	if err != nil {
		return "", err
	}
	thumbprint, err := jwKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(thumbprint), nil
}

// generateTokenHeaders generates the token headers based on the given private key.
func generateTokenHeaders(privateKey rsa.PrivateKey) (jws.Headers, error) {
	thumbprint, err := getThumbprint(privateKey)
	if err != nil {
		return nil, err
	}
	headers := jws.NewHeaders()
	err = headers.Set(jws.KeyIDKey, thumbprint)
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// SignToken signs the given token using the given private key.
func SignToken(token jwt.Token, privateKey rsa.PrivateKey) (string, error) {
	headers, err := generateTokenHeaders(privateKey)
	if err != nil {
		return "", err
	}
	signedToken, err := jwt.Sign(token, EncryptionAlgorithmDefault, privateKey, jwt.WithHeaders(headers))
	if err != nil {
		return "", err
	}
	return string(signedToken), nil
}

// ParseToken parses the token using the public key and returns the parsed token, otherwise an error.
func ParseToken(token string, publicKey rsa.PublicKey) (jwt.Token, error) {
	parsedToken, err := jwt.Parse([]byte(token), jwt.WithVerify(EncryptionAlgorithmDefault, publicKey))
	if err != nil {
		return nil, err
	}
	return parsedToken, nil
}

// Encode signs the given session into a token to be stored in the session cookie.
func Encode(privateKey rsa.PrivateKey, s Session) (string, error) {
	token, err := NewJwtToken(GetDefaultSessionTokenOptions(withSession(s)...)...)
	if err != nil {
		return "", err
	}
	return SignToken(token, privateKey)
}

// MustEncode encodes the given session and if any error occurs, will panic.
func MustEncode(privateKey rsa.PrivateKey, s Session) string {
	token, err := Encode(privateKey, s)
	if err != nil {
		panic(err)
	}
	return token
}

func stringClaim(token jwt.Token, name string) (string, error) {
	value, ok := token.Get(name)
	if !ok {
		return "", fmt.Errorf("claim %s is missing", name)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("claim %s is not a string", name)
	}
	return str, nil
}

func uuidClaim(token jwt.Token, name string) (uuid.UUID, error) {
	value, err := stringClaim(token, name)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(value)
}

// Decode verifies the given token and rebuilds the session it carries.
func Decode(token string, publicKey rsa.PublicKey) (Session, error) {
	parsedToken, err := ParseToken(token, publicKey)
	if err != nil {
		return nil, err
	}
	if !time.Now().Before(parsedToken.Expiration()) {
		return nil, fmt.Errorf("session token expired at %s", parsedToken.Expiration())
	}
	uid, err := uuid.Parse(parsedToken.Subject())
	if err != nil {
		return nil, err
	}
	role, err := stringClaim(parsedToken, roleClaim)
	if err != nil {
		return nil, err
	}
	email, _ := stringClaim(parsedToken, emailClaim)
	name, _ := stringClaim(parsedToken, nameClaim)
	switch Role(role) {
	case PatientRole:
		pid, err := uuidClaim(parsedToken, patientIDClaim)
		if err != nil {
			return nil, err
		}
		return PatientSession{UID: uid, Email: email, Name: name, PatientID: pid}, nil
	case DoctorRole:
		did, err := uuidClaim(parsedToken, doctorIDClaim)
		if err != nil {
			return nil, err
		}
		return DoctorSession{UID: uid, Email: email, Name: name, DoctorID: did}, nil
	}
	return nil, fmt.Errorf("unknown role %q", role)
}
