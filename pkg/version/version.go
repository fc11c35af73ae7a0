package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version  string
	Revision string
)

func String() string {
	if Version != "" && Revision != "" {
		return fmt.Sprintf("vulstrack %s %s", Version, Revision)
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		return fmt.Sprintf("vulstrack %s", info.Main.Version)
	}

	return fmt.Sprintf("vulstrack %s", "(unknown)")
}
