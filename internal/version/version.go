// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package version reports which docredact build is running. The release
// pipeline stamps the variables below with -ldflags "-X ..."; builds without
// stamps fall back to the VCS details the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

// Release stamps; Version follows the release tag without its leading v
var (
	Version   = "0.0.0-development"
	GitCommit = unknown
	BuildDate = unknown
)

// Build identifies one docredact binary. It is served by the health endpoint
// and printed by the CLI.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified,omitempty"`
}

// Current returns the stamped build details, completed from the embedded
// build information where no stamp was given
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == unknown {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.BuildDate == unknown {
				b.BuildDate = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// String renders the build on one line, short commit first
func (b Build) String() string {
	commit := b.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("docredact %s (%s, %s, %s %s)", b.Version, commit, b.BuildDate, b.GoVersion, b.Platform)
}
