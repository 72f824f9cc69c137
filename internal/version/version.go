// Package version хранит метаданные сборки, заданные через -ldflags:
//
//	-X github.com/vladislavdragonenkov/minicrm/internal/version.version=v1.2.3
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var fillOnce sync.Once

// fillFromBuildInfo подставляет VCS-данные go build, если ldflags не заданы.
func fillFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown" && s.Value != "":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown" && s.Value != "":
			date = s.Value
		}
	}
}

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) {
	fillOnce.Do(fillFromBuildInfo)
	return version, commit, date
}

func GetVersion() string {
	v, _, _ := Info()
	return v
}

func GetCommit() string {
	_, c, _ := Info()
	return c
}

func GetDate() string {
	_, _, d := Info()
	return d
}

func String() string {
	v, c, d := Info()
	return fmt.Sprintf("version=%s commit=%s date=%s", v, c, d)
}
