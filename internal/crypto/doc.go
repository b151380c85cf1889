// Package crypto provides the primitives the vault engine is built on.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from composite-credential material via PBKDF2
//   - 12-byte random nonce per encryption operation
//   - 16-byte authentication tag
//
// Key derivation input is the raw material produced by the composite
// credential, not a password: the same KDF covers password-only vaults
// and vaults protected by key files or hardware tokens.
package crypto
