// Package configs manages inkseal configuration and on-disk layout.
//
// Configuration is stored in TOML format at:
//
//	<UserConfigDir>/inkseal/config.toml
//
// The INKSEAL_CONFIG environment variable overrides the location. A missing
// file is not an error; defaults are used instead.
//
// # Sections
//
//   - [keys]: minimum and default RSA sizes, certificate validity
//   - [keystore]: PBKDF2 iteration count (never below 100000)
//   - [verification]: signature freshness policy
//   - [paths]: data directory and the shared revocation ledger
//   - [timeouts]: limits applied around key generation and key derivation
//
// # Layout
//
// Every identity owns one directory under <data_dir>/users/<name>/ holding
// its keystore.enc, certificate.pem, audit.jsonl and records/. The
// revocation ledger is shared by every identity on the machine.
package configs
