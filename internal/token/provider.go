package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Provider mints and validates the server's JWTs. All tokens are HS256 and
// share one signer; opaque refresh tokens are not handled here.
type Provider struct {
	signer *Signer
	issuer string
	leeway time.Duration
}

// NewProvider creates a token provider bound to an immutable signer.
func NewProvider(signer *Signer, issuer string, leeway time.Duration) *Provider {
	return &Provider{
		signer: signer,
		issuer: strings.TrimRight(issuer, "/"),
		leeway: leeway,
	}
}

// Issuer returns the issuer identifier stamped into tokens.
func (p *Provider) Issuer() string {
	return p.issuer
}

// KeyID returns the active signing key identifier.
func (p *Provider) KeyID() string {
	return p.signer.KeyID()
}

// GenerateAccessToken mints an access token with identity projection claims.
func (p *Provider) GenerateAccessToken(params AccessTokenParams) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(params.Lifetime)

	claims := jwt.MapClaims{
		"iss":        p.issuer,
		"sub":        strconv.FormatUint(uint64(params.UserID), 10),
		"aud":        params.ClientID,
		"client_id":  params.ClientID,
		"exp":        expiresAt.Unix(),
		"iat":        now.Unix(),
		"jti":        uuid.NewString(),
		"scope":      params.Scopes,
		"token_type": TypeAccess,
	}
	if len(params.Roles) > 0 {
		claims["roles"] = params.Roles
	}
	if len(params.Permissions) > 0 {
		claims["permissions"] = params.Permissions
	}

	signed, err := p.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken parses and verifies an access token, applying the
// configured clock skew leeway.
func (p *Provider) ValidateAccessToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.Parse(
		tokenString,
		p.signer.Keyfunc(),
		jwt.WithLeeway(p.leeway),
		jwt.WithIssuer(p.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if tokenType, _ := mapClaims["token_type"].(string); tokenType != TypeAccess {
		return nil, ErrInvalidToken
	}

	// The audience is the requesting client; a token missing it, or carrying
	// one that disagrees with client_id, was not minted by this issuer.
	aud, err := mapClaims.GetAudience()
	if err != nil || len(aud) == 0 || aud[0] != stringClaim(mapClaims, "client_id") {
		return nil, fmt.Errorf("%w: bad audience", ErrInvalidToken)
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	claims := &Claims{
		UserID:      uint(userID),
		Scopes:      stringClaim(mapClaims, "scope"),
		ClientID:    stringClaim(mapClaims, "client_id"),
		JTI:         stringClaim(mapClaims, "jti"),
		Roles:       stringSliceClaim(mapClaims, "roles"),
		Permissions: stringSliceClaim(mapClaims, "permissions"),
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}

// SubjectFromToken verifies any token signed by this server and returns its
// subject. Unlike ValidateAccessToken it accepts ID tokens too, which is what
// logout's id_token_hint carries. Expired tokens are still accepted as hints.
func (p *Provider) SubjectFromToken(tokenString string) (uint, error) {
	parsed, err := jwt.Parse(
		tokenString,
		p.signer.Keyfunc(),
		jwt.WithLeeway(p.leeway),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return uint(userID), nil
}

// StripBearer removes a leading "Bearer " scheme, case-insensitively.
// Returns the input unchanged when no scheme is present.
func StripBearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return strings.TrimSpace(header)
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func stringSliceClaim(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
