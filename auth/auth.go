// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides outbound credential handling for backend calls.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Type represents the type of credentials.
type Type string

// Credential type constants.
const (
	TypeNone   Type = "none"
	TypeAPIKey Type = "api_key"
	TypeBearer Type = "bearer"
	TypeBasic  Type = "basic"
	TypeJWT    Type = "jwt"
)

// Credentials represents authentication material presented to a backend.
type Credentials struct {
	// Type identifies the kind of credentials.
	Type Type `json:"type"`

	// AccessToken is the bearer or JWT token value.
	AccessToken string `json:"access_token,omitempty"`

	// APIKey is the API key value. API keys are sent through a custom
	// header, not the Authorization header.
	APIKey string `json:"api_key,omitempty"`

	// Username for basic authentication.
	Username string `json:"username,omitempty"`

	// Password for basic authentication.
	Password string `json:"password,omitempty"`

	// ExpiresAt is when the credentials expire, if they do.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsExpired checks if the credentials are expired.
func (c *Credentials) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*c.ExpiresAt)
}

// IsValid checks if the credentials are valid for use.
func (c *Credentials) IsValid() bool {
	if c == nil || c.IsExpired() {
		return false
	}

	switch c.Type {
	case TypeNone:
		return true
	case TypeAPIKey:
		return c.APIKey != ""
	case TypeBearer, TypeJWT:
		return c.AccessToken != ""
	case TypeBasic:
		return c.Username != "" && c.Password != ""
	default:
		return false
	}
}

// ToAuthHeader converts credentials to an Authorization header value.
func (c *Credentials) ToAuthHeader() (string, error) {
	if !c.IsValid() {
		return "", fmt.Errorf("invalid or expired credentials")
	}

	switch c.Type {
	case TypeBearer, TypeJWT:
		return "Bearer " + c.AccessToken, nil
	case TypeBasic:
		raw := c.Username + ":" + c.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)), nil
	default:
		return "", fmt.Errorf("unsupported credential type for auth header: %s", c.Type)
	}
}

// ParseJWT parses a serialized JWT into credentials, capturing its expiry.
// The token signature is not verified; the backend is the verifying party.
func ParseJWT(tokenString string) (*Credentials, error) {
	token, err := jwt.Parse([]byte(tokenString), jwt.WithValidate(false), jwt.WithVerify(false))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT token: %w", err)
	}

	creds := &Credentials{
		Type:        TypeJWT,
		AccessToken: tokenString,
	}
	if exp, ok := token.Expiration(); ok && !exp.IsZero() {
		creds.ExpiresAt = &exp
	}

	return creds, nil
}

// NewBearer creates bearer token credentials.
func NewBearer(token string, expiresAt *time.Time) *Credentials {
	return &Credentials{
		Type:        TypeBearer,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}
}

// NewBasic creates basic authentication credentials.
func NewBasic(username, password string) *Credentials {
	return &Credentials{
		Type:     TypeBasic,
		Username: username,
		Password: password,
	}
}

// NewAPIKey creates API key credentials.
func NewAPIKey(key string) *Credentials {
	return &Credentials{
		Type:   TypeAPIKey,
		APIKey: key,
	}
}

// Provider supplies fresh bearer tokens for outbound calls. Implementations
// may refresh or rotate tokens between calls.
type Provider interface {
	// Token returns a token to present as a bearer credential.
	Token(ctx context.Context) (string, error)
}

// StaticProvider is a [Provider] returning a fixed token.
type StaticProvider string

// Token implements [Provider].
func (p StaticProvider) Token(ctx context.Context) (string, error) {
	return string(p), nil
}
