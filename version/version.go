// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/docbench/docbench/version.GitRelease=v0.1.0 \
//	  -X github.com/docbench/docbench/version.GitCommit=$(git rev-parse HEAD) \
//	  -X github.com/docbench/docbench/version.GitCommitDate=$(git log -1 --format=%cs)"
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, or "dev" for untagged builds.
	GitRelease = "dev"

	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the date of that commit.
	GitCommitDate = "unknown"
)

// GoInfo describes the toolchain and platform of the build.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
