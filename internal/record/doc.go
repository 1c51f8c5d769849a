// Package record defines the core data model for field tests: the test
// record itself plus its user identity, geographic fix, descriptive
// metadata, and video references. Merge semantics for partial updates
// live here so the store and the API client agree on them.
package record
