// Package credential issues LiveKit room-join tokens for callers.
package credential

import (
	"fmt"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/ent0n29/voicecall/internal/faults"
)

// RoomName is the only room callers are ever granted.
const RoomName = "insurance-room"

// DefaultTTL matches the LiveKit SDK default token validity.
const DefaultTTL = 6 * time.Hour

// Issuer signs room-join tokens locally with a LiveKit API key pair.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewIssuer(apiKey, apiSecret string, ttl time.Duration) (*Issuer, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, faults.Configuration("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}, nil
}

// Issue returns a signed token that lets identity join RoomName.
func (i *Issuer) Issue(identity string) (string, error) {
	if i == nil || i.apiKey == "" || i.apiSecret == "" {
		return "", faults.Configuration("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set")
	}

	token := auth.NewAccessToken(i.apiKey, i.apiSecret).
		SetIdentity(identity).
		SetValidFor(i.ttl).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin: true,
			Room:     RoomName,
		})

	jwt, err := token.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign room token: %w", err)
	}
	return jwt, nil
}
