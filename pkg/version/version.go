// Package version holds build-time version info injected via ldflags.
//
// Set at compile time:
//
//	go build -ldflags "-X github.com/NicolasHaas/radiolink/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/radiolink/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/radiolink/pkg/version.date=2026-01-01"
package version

import "fmt"

// Populated by -ldflags "-X ...". Defaults are used for local dev builds.
var (
	tag    = ""
	commit = "unknown"
	date   = "unknown"
)

// String returns a short version string: the tag, else the commit, else "dev".
func String() string {
	if tag != "" {
		return tag
	}
	if commit != "unknown" {
		return commit
	}
	return "dev"
}

// Full returns "tag (commit) built date" or a sensible fallback.
func Full() string {
	switch {
	case tag != "":
		return fmt.Sprintf("%s (%s) built %s", tag, commit, date)
	case commit != "unknown":
		return fmt.Sprintf("%s built %s", commit, date)
	default:
		return "dev"
	}
}

// UserAgent is sent with every API request.
func UserAgent() string {
	return "radiolink/" + String()
}
