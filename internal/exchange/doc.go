// Package exchange builds and reads portable export packages.
//
// A package carries one signed envelope together with the signer's
// certificate, so an importer can check authorship without knowing the
// signer's key in advance. Importing proves authenticity only: the payload
// stays encrypted for the original owner. Adopt lets an identity that can
// decrypt the envelope re-seal it under its own key.
package exchange
