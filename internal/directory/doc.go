// Package directory maintains the email to user ID index of a Zoom account.
//
// The index is built by paging through the account's active users and is
// cached as a single entry. Resolve tolerates a stale index: when an email
// is not found it rebuilds the index once and looks again.
package directory
