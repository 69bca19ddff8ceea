// Package auth issues and verifies the bearer tokens that guard the
// control endpoints of the satpush API.
//
// Tokens are HS256 JWTs signed with a shared secret from configuration.
// They carry only a subject naming the operator or automation that holds
// them; the API records that subject on every audit entry it writes.
// Nothing is stored server side, so rotating the secret revokes every
// outstanding token.
package auth
