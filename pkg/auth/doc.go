// Package auth provides the authorization engine and credential handling for
// WarrantyHub.
//
// # Overview
//
// Access control is built from three independent gates rather than a role
// hierarchy:
//
//   - membership: may the user see resources in an account at all
//   - administration: may the user mutate membership and account settings
//   - ownership: irrevocable rights held by the account creator
//
// Each gate is a single boolean function over the requester's memberships,
// fetched once per request:
//
//	ms, _ := accounts.ListUserMemberships(ctx, userID)
//	if !auth.CanAdminister(ms, accountID) {
//		return apperr.Forbidden()
//	}
//
// # Global admin
//
// RoleGlobalAdmin held on any membership grants administrative rights over
// every account. The check is computed independently of the per-account role
// lookup, so no join-table scan has to special-case a magic role value.
//
// # Credentials and sessions
//
// The package also carries the credential hasher (bcrypt) and a Redis-backed
// session store mapping opaque bearer tokens to user ids. Both are adapters
// behind small interfaces; the core services never see password or token
// material.
package auth
