package push

import (
	"github.com/golang-jwt/jwt/v5"
)

// identityFromCredential derives a stable user identity from the bearer
// credential, so re-authentication with a fresh token for the same user still
// counts as the same identity. JWT credentials use the subject claim; opaque
// credentials fall back to the credential value itself.
//
// The claim is read without signature verification: the credential is only
// bucketed locally, never trusted for authorization.
func identityFromCredential(credential string) string {
	token, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return credential
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return credential
	}
	return sub
}
