// Package records stores an identity's sealed records on disk.
//
// The store keeps a plaintext index.json with titles, tags and timestamps,
// and one <id>.json file per record holding its envelope. Record bodies are
// never stored unencrypted; titles and tags are, so they can be searched.
package records
