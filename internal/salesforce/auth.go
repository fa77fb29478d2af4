package salesforce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// ErrNoInstanceURL is returned when the token response lacks instance_url.
var ErrNoInstanceURL = errors.New("token response has no instance_url")

// Credentials holds the username-password login parameters.
type Credentials struct {
	Domain        string // "login", "test" or a My Domain prefix
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string

	// TokenURL overrides the URL derived from Domain.
	TokenURL string
}

// TokenURL returns the OAuth2 token endpoint for a login domain.
func TokenURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		domain = "login"
	}
	return fmt.Sprintf("https://%s.salesforce.com/services/oauth2/token", domain)
}

// Session is an authenticated API session.
type Session struct {
	InstanceURL string
	Token       *oauth2.Token
}

// Login performs the OAuth2 username-password flow. The security token is
// appended to the password as the API requires. httpClient may be nil.
func Login(ctx context.Context, httpClient *http.Client, creds Credentials) (*Session, error) {
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL(creds.Domain)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	tok, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password+creds.SecurityToken)
	if err != nil {
		return nil, fmt.Errorf("salesforce login: %w", err)
	}

	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		return nil, ErrNoInstanceURL
	}
	return &Session{InstanceURL: strings.TrimRight(instance, "/"), Token: tok}, nil
}
