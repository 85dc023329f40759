package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки (задаются через -ldflags).
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает только версию сборки.
func GetVersion() string { return version }

func String() string {
	return fmt.Sprintf("ordercore version=%s commit=%s date=%s", version, commit, date)
}

// GetCommit возвращает хеш коммита сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }
