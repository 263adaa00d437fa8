package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/menusam/partner-billing/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID          uuid.UUID
	Role            enums.ActorRole
	EstablishmentID *uuid.UUID
	JTI             string
}

// AccessTokenClaims represents the typed JWT minted by the auth gateway.
type AccessTokenClaims struct {
	UserID          uuid.UUID       `json:"user_id"`
	Role            enums.ActorRole `json:"role"`
	EstablishmentID *uuid.UUID      `json:"establishment_id,omitempty"`
	jwt.RegisteredClaims
}
