// Package middleware provides HTTP middleware for authentication and rate
// limiting.
//
// Identity resolves the Bearer session token to a user id and stores it in
// the request context; handlers read it back with contextkeys.UserIDFrom.
// The rate limiter is Redis-backed so limits hold across instances, keyed by
// user id when authenticated and by remote address otherwise.
package middleware
