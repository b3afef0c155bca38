package model

// TokenManager issues and validates bearer access tokens.
type TokenManager interface {
	GenerateAccessToken(principal Principal) (string, error)
	ParseAccessToken(token string) (Principal, error)
}
