// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package blogbatch generates blog posts for a spreadsheet of stores.
package blogbatch

import (
	"github.com/maloquacious/semver"
)

var (
	version = semver.Version{
		Major: 0,
		Minor: 3,
		Patch: 0,
		Build: semver.Commit(),
	}
)

func Version() semver.Version {
	return version
}
