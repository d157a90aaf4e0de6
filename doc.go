// Package identity provides the account lifecycle for the platform:
// registration with box aliases, email ownership verification, hybrid
// session establishment, and token rotation.
//
// Accounts:
//   - Every account receives an immutable public BoxAlias (BOX-XXXXXX) at
//     registration. Studio accounts can be joined at signup by quoting their
//     alias as a studio code.
//   - Login is blocked until the email address is verified, either through
//     the mailed single-use token or implicitly by a Google sign-in, since
//     the provider vouches for the address.
//
// Sessions and tokens:
//   - Auther mints a short lived access token and a long lived refresh token
//     per login. Only the refresh token's digest is persisted; each account
//     holds a single refresh slot, so rotation and logout invalidate every
//     previously issued refresh token.
//   - RouteAuthenticator carries the transport concerns: the httpOnly
//     refresh cookie, the server side session claim, and the bearer
//     middleware wiring. NormalizePrincipal reconciles every authentication
//     representation (token claims, session wrapper, codec maps) into one
//     Principal shape.
//
// Google sign-in lives in the social subpackage and reuses Auther for
// session establishment, so both login paths produce identical sessions.
package identity
