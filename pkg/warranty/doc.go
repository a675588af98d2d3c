// Package warranty implements the warranty item and document lifecycle.
//
// Items belong to an account and are reachable by every member of that
// account. Expiry dates are derived from the purchase date plus the warranty
// period in calendar months and stored alongside the row; they are recomputed
// on every write that touches either input. Status (NO_EXPIRY, EXPIRED,
// EXPIRING_SOON, ACTIVE) is always derived at read time and never stored.
//
// Documents are metadata rows pointing at objects in the blob store. Database
// rows are the source of truth: deleting an item or document removes the rows
// first and then cleans the blobs best-effort, so a blob store outage can
// leak an orphaned object but never a dangling row.
package warranty
