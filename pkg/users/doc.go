// Package users implements registration, login credentials and password
// management.
//
// Registration is the only way into the system: invitations require an
// already-registered user. A new user gets a personal default account with
// an owner ACCOUNT_ADMIN membership, created in the same transaction as the
// user row. The password digest column is nullable so identity-provider-only
// users can exist without a local password.
package users
