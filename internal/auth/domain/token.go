package domain

// TokenPair is a freshly minted access/refresh token pair, both bound to
// the same sid.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	SID          string `json:"-"`
}
