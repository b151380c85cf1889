// Package vault implements the vault engine: creating a vault file,
// unlocking it with a composite credential, entry storage, and
// all-or-nothing persistence.
//
// Core operations include:
//   - Create: initialize a new vault protected by a composite credential
//   - Open/Unlock: open the file and verify a credential against it
//   - SetEntry/GetEntry/RemoveEntry: encrypted entry storage
//   - SetKey + Save: swap the unlock credential and atomically rewrite
//     the vault under the new one; a failed save leaves the on-disk
//     file untouched
package vault
