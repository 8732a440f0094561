// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	b := Current()
	assert.Equal(t, Version, b.Version)
	assert.NotEmpty(t, b.Commit)
	assert.NotEmpty(t, b.BuildDate)
	assert.True(t, strings.HasPrefix(b.GoVersion, "go"))
	assert.Contains(t, b.Platform, "/")
}

func TestStampedValuesWin(t *testing.T) {
	defer func(v, c, d string) { Version, GitCommit, BuildDate = v, c, d }(Version, GitCommit, BuildDate)
	Version, GitCommit, BuildDate = "1.4.0", "0123456789abcdef0123", "2026-03-01T10:00:00Z"

	b := Current()
	assert.Equal(t, "0123456789abcdef0123", b.Commit)
	assert.Equal(t, "2026-03-01T10:00:00Z", b.BuildDate)
	assert.True(t, strings.HasPrefix(b.String(), "docredact 1.4.0 (0123456789ab"))
}

func TestStringMarksModifiedTrees(t *testing.T) {
	b := Build{Version: "1.0.0", Commit: "abc", BuildDate: "today", GoVersion: "go1.25.1", Platform: "linux/amd64", Modified: true}
	assert.Equal(t, "docredact 1.0.0 (abc-dirty, today, go1.25.1 linux/amd64)", b.String())
}
