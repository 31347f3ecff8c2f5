// Package auth resolves bearer session tokens into identities.
//
// The authentication backend is a Supabase-compatible service: the user is
// read from /auth/v1/user and the roles from the user_roles table through
// /rest/v1. Resolved identities are cached per token for a short TTL.
// Middleware puts the Identity into the gin context for the API handlers.
package auth
