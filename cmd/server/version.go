package main

import (
	"runtime"

	"github.com/inferloop/anonsearch/internal/server"
	"github.com/inferloop/anonsearch/pkg/constants"
)

// Set at build time with -ldflags "-X main.GitCommit=..."
var (
	Version   = constants.AppVersion
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
	Platform  = runtime.GOOS + "/" + runtime.GOARCH
)

func GetBuildInfo() server.BuildInfo {
	return server.BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Platform:  Platform,
	}
}
