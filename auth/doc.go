// Package auth resolves who is asking.
//
// Discovery needs one fact from authentication: the requester id, or none.
// A JWTAuthenticator validates bearer tokens issued by a Cognito-style user
// pool, with signing keys from a static secret or a JWKS endpoint. Resolve
// turns any failure into the anonymous identity, since anonymous callers still
// see public templates.
package auth
