// Package internal contains helper utilities that are intentionally private
// to authkit, currently the refresh-token digest helper shared by the
// service and the store adapters.
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
