package token

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateIDToken mints an OpenID Connect ID token. Profile and email claims
// are included only when the corresponding scope was granted.
func (p *Provider) GenerateIDToken(params IDTokenParams) (string, error) {
	now := time.Now()
	scopes := ScopeSet(params.Scopes)

	claims := jwt.MapClaims{
		"iss":       p.issuer,
		"sub":       strconv.FormatUint(uint64(params.Subject), 10),
		"aud":       params.Audience,
		"exp":       now.Add(params.Lifetime).Unix(),
		"iat":       now.Unix(),
		"auth_time": params.AuthTime.Unix(),
	}

	if params.Nonce != "" {
		claims["nonce"] = params.Nonce
	}
	if params.AccessToken != "" {
		claims["at_hash"] = ComputeAtHash(params.AccessToken)
	}

	if _, ok := scopes["profile"]; ok {
		if params.Username != "" {
			claims["preferred_username"] = params.Username
		}
		if params.FullName != "" {
			claims["name"] = params.FullName
		}
	}
	if _, ok := scopes["email"]; ok && params.Email != "" {
		claims["email"] = params.Email
		claims["email_verified"] = false
	}

	return p.signer.Sign(claims)
}

// ComputeAtHash computes the OIDC at_hash value for an HS256 access token:
// the base64url-encoded left half of the SHA-256 digest.
func ComputeAtHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
