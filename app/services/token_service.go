package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NathanHayman/rivvi-beta-sub007/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// TokenService validates access tokens issued by the external identity
// provider and mints service tokens for internal tooling.
type TokenService interface {
	GenerateToken(orgUUID uuid.UUID, userID string, isSuperAdmin bool) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
	RevokeToken(token string) error
	IsTokenRevoked(tokenID string) bool
}

// TokenClaims represents the claims in a JWT token
type TokenClaims struct {
	OrganizationUUID uuid.UUID `json:"org_uuid"`
	UserID           string    `json:"user_id"`
	IsSuperAdmin     bool      `json:"is_super_admin"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	TokenID          string    `json:"jti"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	signingMethod  jwt.SigningMethod
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	secretKey      []byte
	useRSAKeys     bool
	issuer         string
	audience       string

	mu            sync.RWMutex
	revokedTokens map[string]time.Time
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	var privateKey *rsa.PrivateKey
	var publicKey *rsa.PublicKey
	var secretKeyBytes []byte
	var signingMethod jwt.SigningMethod

	if useRSAKeys {
		var err error
		privateKey, publicKey, err = parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		secretKeyBytes = []byte(secretKey)
		signingMethod = jwt.SigningMethodHS256
	}

	if accessTokenTTL <= 0 {
		accessTokenTTL = utils.AccessTokenTTL
	}

	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		signingMethod:  signingMethod,
		privateKey:     privateKey,
		publicKey:      publicKey,
		secretKey:      secretKeyBytes,
		useRSAKeys:     useRSAKeys,
		issuer:         issuer,
		audience:       audience,
		revokedTokens:  make(map[string]time.Time),
	}, nil
}

// parseRSAKeys parses RSA private and public keys from PEM format
func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
	if privateKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}

	publicKeyIfc, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := publicKeyIfc.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not an RSA key")
	}

	return privateKey, publicKey, nil
}

// GenerateToken mints a signed access token for the given identity
func (s *TokenServiceImpl) GenerateToken(orgUUID uuid.UUID, userID string, isSuperAdmin bool) (string, error) {
	now := utils.UTCNow()
	tokenID := uuid.New().String()

	claims := jwt.MapClaims{
		"org_uuid":       orgUUID.String(),
		"user_id":        userID,
		"is_super_admin": isSuperAdmin,
		"iss":            s.issuer,
		"aud":            s.audience,
		"iat":            now.Unix(),
		"exp":            now.Add(s.accessTokenTTL).Unix(),
		"jti":            tokenID,
	}

	token := jwt.NewWithClaims(s.signingMethod, claims)

	if s.useRSAKeys {
		return token.SignedString(s.privateKey)
	}
	return token.SignedString(s.secretKey)
}

// ValidateToken verifies signature, expiry and revocation, and extracts claims
func (s *TokenServiceImpl) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		if s.useRSAKeys {
			return s.publicKey, nil
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	tokenID, _ := claims["jti"].(string)
	if s.IsTokenRevoked(tokenID) {
		return nil, ErrTokenRevoked
	}

	orgUUIDStr, _ := claims["org_uuid"].(string)
	orgUUID, err := uuid.Parse(orgUUIDStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	userID, _ := claims["user_id"].(string)
	isSuperAdmin, _ := claims["is_super_admin"].(bool)

	result := &TokenClaims{
		OrganizationUUID: orgUUID,
		UserID:           userID,
		IsSuperAdmin:     isSuperAdmin,
		TokenID:          tokenID,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}

	return result, nil
}

// RevokeToken marks a token's jti as revoked until its natural expiry
func (s *TokenServiceImpl) RevokeToken(tokenString string) error {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedTokens[claims.TokenID] = claims.ExpiresAt

	// Opportunistic cleanup of expired revocations
	now := utils.UTCNow()
	for id, exp := range s.revokedTokens {
		if now.After(exp) {
			delete(s.revokedTokens, id)
		}
	}

	return nil
}

// IsTokenRevoked checks whether the token id has been revoked
func (s *TokenServiceImpl) IsTokenRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, revoked := s.revokedTokens[tokenID]
	return revoked
}
