// Package jwt signs and verifies HS256 tokens on top of github.com/golang-jwt/jwt/v5.
//
// The Service hides the parser options and maps library errors onto a small set
// of package sentinels, so callers can branch with errors.Is without importing
// the underlying library:
//
//	svc, err := jwt.New([]byte(secret))
//	token, err := svc.Generate(claims)
//	err = svc.Parse(token, &claims)
//	if errors.Is(err, jwt.ErrExpiredToken) { ... }
//
// Claims types embed jwt.RegisteredClaims from the underlying library, re-exported
// here as RegisteredClaims together with NewNumericDate.
//
// The package also carries request helpers: BearerTokenExtractor pulls the token
// out of the Authorization header and Middleware stores it in the request context
// for handlers that verify it later against their own data.
package jwt
