// Package common contains shared constants and sentinel errors used across
// credkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName and BearerScheme describe the HTTP form of the
// access token: "Authorization: Bearer <token>".
const (
	AuthorizationHeaderName = "Authorization"
	BearerScheme            = "Bearer"
)

// ServiceVersion is reported by the status endpoints.
const ServiceVersion = "1.0.0"
