// Package auth issues and verifies access tokens, hashes passwords and
// resolves a bearer token to the acting Identity.
package auth
