package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
)

// AuthService provides authentication operations for the Last.fm API.
type AuthService struct {
	client *Client
}

// tokenResponse represents the XML response from auth.getToken.
type tokenResponse struct {
	Token string `xml:"token"`
}

// sessionResponse represents the XML response from auth.getSession.
type sessionResponse struct {
	Session struct {
		Name       string `xml:"name"`
		Key        string `xml:"key"`
		Subscriber int    `xml:"subscriber"`
	} `xml:"session"`
}

// GetToken requests an authentication token from Last.fm.
//
// This is the first step in the authentication flow. After obtaining a token,
// the user must authorize it by visiting the URL returned by GetAuthURL.
//
// Example:
//
//	token, err := client.Auth().GetToken(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Visit:", client.Auth().GetAuthURL(token.Token))
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	resp, err := a.client.call(ctx, "auth.getToken", nil, false)
	if err != nil {
		return nil, err
	}

	wrapped := []byte("<root>" + string(resp) + "</root>")

	var tr tokenResponse
	if err := xml.Unmarshal(wrapped, &tr); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse token response: %w", err)
	}

	if tr.Token == "" {
		return nil, fmt.Errorf("lastfm: received empty token")
	}

	return &Token{Token: tr.Token}, nil
}

// GetAuthURL returns the URL where users authorize the token.
//
// After calling GetToken, direct the user to this URL to authorize
// the application. Once authorized, call GetSession to exchange the
// token for a session key.
//
// Example:
//
//	authURL := client.Auth().GetAuthURL(token.Token)
//	fmt.Println("Please visit:", authURL)
func (a *AuthService) GetAuthURL(token string) string {
	return "https://www.last.fm/api/auth/?api_key=" + a.client.apiKey + "&token=" + token
}

// GetSession exchanges an authorized token for a session key.
//
// After the user has authorized the token at the URL from GetAuthURL,
// call this method to exchange the token for a permanent session key.
// The session key should be stored and used for all future authenticated
// requests.
//
// Example:
//
//	session, err := client.Auth().GetSession(ctx, token.Token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetSessionKey(session.Key)
//	// Store session.Key for future use
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	params := map[string]string{
		"token": token,
	}

	resp, err := a.client.call(ctx, "auth.getSession", params, false)
	if err != nil {
		return nil, err
	}

	wrapped := []byte("<root>" + string(resp) + "</root>")

	var sr sessionResponse
	if err := xml.Unmarshal(wrapped, &sr); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}

	if sr.Session.Key == "" {
		return nil, fmt.Errorf("lastfm: received empty session key")
	}

	return &Session{
		Key:        sr.Session.Key,
		Username:   sr.Session.Name,
		Subscriber: sr.Session.Subscriber == 1,
	}, nil
}
