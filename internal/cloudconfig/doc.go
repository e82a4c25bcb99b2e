// Package cloudconfig keeps the cloud-managed subset of the device config in
// step with the portal. Pull applies the portal's document to the device;
// Push publishes local edits back using the last seen version as an
// optimistic-concurrency base. When both sides changed, the portal wins.
package cloudconfig
