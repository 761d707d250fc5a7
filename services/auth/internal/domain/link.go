package domain

import (
	"net/url"
)

// LinkCredentials is the token material carried by an inbound verification or
// reset link. The issuing side has changed format over time; both shapes are
// accepted: a fragment token pair (access + refresh) and a one-time exchange
// code in the query string.
type LinkCredentials struct {
	AccessToken  string
	RefreshToken string
	Code         string
}

func (c LinkCredentials) HasTokenPair() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

func (c LinkCredentials) HasCode() bool {
	return c.Code != ""
}

// Empty reports whether the URL carried no recognizable token material.
func (c LinkCredentials) Empty() bool {
	return !c.HasTokenPair() && !c.HasCode()
}

// ParseLinkURL extracts credentials from a raw inbound link. Fragment
// parameters win over query parameters when both are present, matching the
// order the links were issued in historically. A malformed URL yields empty
// credentials, not an error: the caller treats "nothing usable" uniformly.
func ParseLinkURL(raw string) LinkCredentials {
	var creds LinkCredentials

	u, err := url.Parse(raw)
	if err != nil {
		return creds
	}

	if u.Fragment != "" {
		if vals, err := url.ParseQuery(u.Fragment); err == nil {
			creds.AccessToken = vals.Get("access_token")
			creds.RefreshToken = vals.Get("refresh_token")
		}
	}

	if creds.HasTokenPair() {
		return creds
	}
	// A lone access token without its refresh half is unusable; drop it.
	creds.AccessToken = ""
	creds.RefreshToken = ""

	creds.Code = u.Query().Get("code")
	return creds
}
