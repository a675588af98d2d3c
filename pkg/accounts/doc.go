// Package accounts provides multi-tenant account and membership management
// for WarrantyHub.
//
// # Overview
//
// An account is the tenant scope owning warranty items and having members.
// Every mutating operation takes the requester's user id, loads the
// requester's memberships once, and gates the mutation through the pkg/auth
// predicates before touching rows.
//
// # Ownership invariants
//
// Each account has exactly one owner, fixed at creation:
//
//   - the owner's membership can never be removed or demoted; ChangeRole and
//     RemoveMember fail with a conflict, enforced again at write time by the
//     SQL predicate so concurrent owner reassignment cannot slip through
//   - the owner cannot leave the account, only delete it
//   - only the owner may delete the account
//
// # Deletion cascade
//
// DeleteAccount removes the account, its memberships, its warranty items and
// their document rows in one transaction, then attempts blob store deletion
// for every document key. Blob failures are logged and never abort the
// operation; rows are the source of truth and a leaked blob is preferred
// over a dangling reference.
//
// # Related packages
//
//   - pkg/auth: role model and authorization predicates
//   - pkg/warranty: resources owned by an account
//   - pkg/audit: membership mutations are recorded as audit events
package accounts
