package auth

import (
	"errors"

	verifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleVerifier checks Google-issued ID tokens against the configured OAuth
// client id and extracts the verified (subject, email) pair.
type GoogleVerifier struct {
	audience []string
	v        *verifier.Verifier
}

func NewGoogleVerifier(clientIDs ...string) *GoogleVerifier {
	return &GoogleVerifier{audience: clientIDs, v: &verifier.Verifier{}}
}

func (g *GoogleVerifier) Verify(idToken string) (subject, email string, err error) {
	if err := g.v.VerifyIDToken(idToken, g.audience); err != nil {
		return "", "", err
	}
	claims, err := verifier.Decode(idToken)
	if err != nil {
		return "", "", err
	}
	if claims.Email == "" {
		return "", "", errors.New("token carries no email claim")
	}
	return claims.Sub, claims.Email, nil
}
