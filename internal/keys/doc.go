// Package keys models the composite credential that unlocks a vault.
//
// A vault is protected by a set of factors: a master password, an
// optional key file and any number of challenge-response hardware
// tokens. The package owns the policy for composing, validating and
// swapping factors:
//   - Factor: a single unlock factor with exclusive secret material
//   - CompositeKey: the full factor set with uniqueness invariants
//   - Reconfigure: computes a new CompositeKey from an old one plus a
//     ChangeRequest, without touching storage
package keys
