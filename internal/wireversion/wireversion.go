// Package wireversion tags control-message serialisation (spec §6)
// with a semantic version so two IPCPs that disagree about the wire
// revision can log a clear diagnostic instead of silently
// misparsing bytes, the same role common/version/latest_version.go
// played for the teacher's own update-check flow (CURRENT_VERSION).
// The PCI/name-codec layouts themselves are pinned by §3/§6 and do
// not vary with this version; it is diagnostic metadata only.
package wireversion

import "github.com/blang/semver"

// CURRENT_VERSION is the wire-protocol revision this build speaks.
var CURRENT_VERSION = semver.MustParse("1.0.0")

// Compatible reports whether a peer-advertised version can be
// expected to interoperate with CURRENT_VERSION (same major).
func Compatible(peer semver.Version) bool {
	return peer.Major == CURRENT_VERSION.Major
}
