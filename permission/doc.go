// Package permission normalizes the backend's heterogeneous authorization data into a
// single ordered [CanonicalLevel] and maps frontend role labels onto backend role groups.
//
// # Resolution chain
//
// [Resolver.Resolve] runs a fixed chain of pure rules, first match wins:
//
//  1. level already a canonical name (FACTORY, REGIONAL, NATIONAL, ADMIN; exact case)
//  2. role looked up in the role→level table
//  3. non-numeric level lowercased and looked up in the alias table
//  4. numeric level looked up in the ordinal table ("1" is ADMIN, "4" is FACTORY)
//  5. LevelUnauthorized
//
// The ordinal table runs in descending authority. That inversion is the backend's
// contract and is kept as-is in [DefaultOrdinals].
//
// # What this package must NOT do
//
//   - Panic or return an error from resolution; unknown shapes resolve to
//     LevelUnauthorized.
//   - Perform I/O or import session, guard, or api.
package permission
