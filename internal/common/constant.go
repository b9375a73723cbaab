// Package common contains shared constants and sentinel errors used across
// fieldsync components.
package common

// AuthorizationHeaderName carries the bearer token on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token inside the Authorization header.
const BearerPrefix = "Bearer "

// EnvConfigPath names the environment variable consulted for the JSON config
// path when neither -c nor -config is given.
const EnvConfigPath = "FIELDSYNC_CONFIG"
