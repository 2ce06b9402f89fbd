// Package authsdk holds the wire types of the auth service and a small client
// for them. The server writes errors with APIError, the client parses them
// back into the same type so callers can use errors.As.
package authsdk
