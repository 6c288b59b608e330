package calls

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"golang.org/x/crypto/hkdf"
)

const (
	credentialAlgorithm = jwa.HS256
	credentialIssuer    = "clinic_booking"
	credentialType      = "call"
	roomClaim           = "room"
	roleClaim           = "role"
	nameClaim           = "name"

	signingKeyInfo   = "call-credential:"
	roomPasswordInfo = "room-password:"
	signingKeySize   = 32
	roomPasswordSize = 12
)

// Participant identifies who is joining a call.
type Participant struct {
	UserID string
	Role   string
	Name   string
}

// Credential is handed to a participant to join a call room.
type Credential struct {
	MeetingID   string    `json:"meeting_id"`
	MeetingLink string    `json:"meeting_link"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issuer derives per-call keys from the provider secret and mints participant credentials.
// The provider secret never leaves the Issuer.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. The secret must not be empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

func (i *Issuer) derive(info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, i.secret, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// RoomPassword returns the password of the given meeting room.
func (i *Issuer) RoomPassword(meetingID string) (string, error) {
	password, err := i.derive(roomPasswordInfo+meetingID, roomPasswordSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(password), nil
}

// Mint creates a credential for the given participant, valid only for the given meeting.
func (i *Issuer) Mint(meetingID string, participant Participant, now time.Time) (*Credential, error) {
	key, err := i.derive(signingKeyInfo+meetingID, signingKeySize)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(i.ttl)
	token := jwt.New()
	claims := map[string]interface{}{
		jwt.IssuerKey:     credentialIssuer,
		jwt.SubjectKey:    participant.UserID,
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: expiresAt,
		"typ":             credentialType,
		roomClaim:         meetingID,
		roleClaim:         participant.Role,
		nameClaim:         participant.Name,
	}
	for k, v := range claims {
		if err = token.Set(k, v); err != nil {
			return nil, err
		}
	}
	signed, err := jwt.Sign(token, credentialAlgorithm, key)
	if err != nil {
		return nil, err
	}
	return &Credential{
		MeetingID:   meetingID,
		MeetingLink: MeetingLink(meetingID),
		Token:       string(signed),
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks that the given token was minted for the given meeting and is not expired,
// returning the participant it was minted for. The call provider runs it with the shared secret
// when a participant joins the room.
func (i *Issuer) Verify(meetingID, token string, now time.Time) (*Participant, error) {
	key, err := i.derive(signingKeyInfo+meetingID, signingKeySize)
	if err != nil {
		return nil, err
	}
	parsed, err := jwt.Parse([]byte(token), jwt.WithVerify(credentialAlgorithm, key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !now.Before(parsed.Expiration()) {
		return nil, fmt.Errorf("%w: expired at %s", ErrInvalidCredential, parsed.Expiration())
	}
	room, _ := parsed.Get(roomClaim)
	if room != meetingID {
		return nil, ErrInvalidCredential
	}
	participant := &Participant{UserID: parsed.Subject()}
	if role, ok := parsed.Get(roleClaim); ok {
		participant.Role, _ = role.(string)
	}
	if name, ok := parsed.Get(nameClaim); ok {
		participant.Name, _ = name.(string)
	}
	return participant, nil
}
