package session

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the payload for creating a customer account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=80"`
	Avatar   string `json:"avatar,omitempty" validate:"omitempty,max=40"`
}

// FederatedLoginRequest carries the ID token issued by the identity provider.
type FederatedLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// State is the session as surfaces see it.
type State struct {
	Authenticated bool   `json:"authenticated"`
	Guest         bool   `json:"guest"`
	Admin         bool   `json:"admin"`
	Loading       bool   `json:"loading"`
	PrincipalID   string `json:"principalId,omitempty"`
	Name          string `json:"name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Role          string `json:"role,omitempty"`
	Credits       int64  `json:"credits"`
}
