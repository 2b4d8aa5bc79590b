package server

import (
	"time"

	"github.com/recollect-labs/recollect/internal/cluster"
)

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the JWT returned on login.
type TokenResponse struct {
	Token string `json:"token"`
}

// ClusterSessionRequest is the raw session payload supplied by the
// extension.
type ClusterSessionRequest struct {
	SessionIdentifier string                `json:"session_identifier"`
	StartTime         time.Time             `json:"start_time"`
	EndTime           time.Time             `json:"end_time"`
	Items             []cluster.HistoryItem `json:"items"`
}
