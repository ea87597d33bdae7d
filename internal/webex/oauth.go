package webex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credentials are the OAuth integration secrets. They are passed through to
// the token endpoint and never inspected.
type Credentials struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// CanRefresh reports whether a refresh grant can be attempted.
func (c Credentials) CanRefresh() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// RefreshedToken is the outcome of a refresh grant.
type RefreshedToken struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	Expiry                time.Time `json:"expiry"`
	RefreshTokenExpiresIn float64   `json:"refresh_token_expires_in,omitempty"`
}

// RefreshToken exchanges creds.RefreshToken at POST {baseURL}/access_token
// with grant_type=refresh_token. httpClient may be nil.
func RefreshToken(ctx context.Context, baseURL string, httpClient *http.Client, creds Credentials) (RefreshedToken, error) {
	if !creds.CanRefresh() {
		return RefreshedToken{}, errors.New("client_id, client_secret and refresh_token are required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	cfg := oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(baseURL, "/") + "/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	// An already expired token forces the source to use the refresh grant.
	stale := &oauth2.Token{RefreshToken: creds.RefreshToken, Expiry: time.Unix(1, 0)}
	tok, err := cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return RefreshedToken{}, fmt.Errorf("refreshing access token: %w", err)
	}

	out := RefreshedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if out.RefreshToken == "" {
		out.RefreshToken = creds.RefreshToken
	}
	if v, ok := tok.Extra("refresh_token_expires_in").(float64); ok {
		out.RefreshTokenExpiresIn = v
	}
	return out, nil
}
