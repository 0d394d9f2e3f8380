// Package auth provides account management and authentication for RBAC Core.
//
// Accounts sign up with an email, a password and a name. The first account
// ever created is assigned the Super Admin role; every later account gets
// Junior Staff. The choice is made inside the transaction that inserts the
// user, so concurrent signups cannot produce two Super Admins.
//
// Signin verifies an Argon2id password hash and issues an HS256 access
// token plus an opaque refresh token. Five consecutive wrong passwords lock
// the account for five minutes. Refresh tokens are stored as SHA-256 hashes,
// rotated on every refresh and revoked in bulk on signout.
//
// Roles and the permission catalog are seeded at startup with fixed IDs
// (SeedRoles). Authorisation checks resolve "resource:action" keys through
// the user's active roles.
//
// Everything that happens to an account is reported to an EventSink; the
// events package provides sinks for the audit log, MQTT and InfluxDB.
package auth
