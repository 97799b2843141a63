// Package web holds the status page served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

//go:embed dist/*
var staticAssets embed.FS

// DevModeEnv names the environment variable that makes the monitor serve the
// pages from the source tree, so that they can be edited without rebuilding.
const DevModeEnv = "QUANTASIM_MONITOR_DEV"

// GetAssets returns the status page and its assets.
func GetAssets() http.FileSystem {
	if devMode() {
		return sourceAssets()
	}

	dist, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		log.Panic(err)
	}

	return http.FS(dist)
}

func sourceAssets() http.FileSystem {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		log.Panic("cannot locate the monitoring page sources")
	}

	dir := filepath.Join(filepath.Dir(file), "dist")
	log.Printf("monitor serves the page from %s", dir)

	return http.Dir(dir)
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))
	return err == nil && on
}
