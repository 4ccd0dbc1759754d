package http

import (
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
)

type identityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newIdentityResponse(i domain.Identity) identityResponse {
	return identityResponse{
		ID:        i.ID,
		Email:     i.Email,
		Name:      i.Name,
		Role:      i.Role,
		CreatedAt: i.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

func newTokenResponse(p domain.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
	}
}
