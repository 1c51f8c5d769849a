// Package ipgeo resolves an approximate location from the caller's
// public IP address. Each supported service sits behind one Provider
// interface; adding a service means appending to the registry, not
// branching.
package ipgeo
