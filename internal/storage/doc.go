// Package storage provides the BBolt database interface for a vault file.
//
// Database structure uses four buckets:
//   - config: version, timestamps, KDF parameters, vault ID, metadata
//     such as the vault name (unencrypted)
//   - keyinfo: public descriptors of the unlock factors, so an unlock
//     knows what to prompt for (unencrypted, no secret material)
//   - entries: encrypted secret values keyed by entry name
//   - private: encrypted credential checksum and entry metadata
package storage
