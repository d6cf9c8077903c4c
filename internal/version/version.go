package version

import (
	"fmt"
	"log"
)

var (
	Name    = "docstore"
	Version = "v0.1.0"
	Commit  = "none"
	Date    = "nowish"
)

func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	vlog.Printf("%s %s", Name, Version)

	if extendedInfo {
		vlog.Println(fmt.Sprintf(" Commit: %s", Commit))
		vlog.Println(fmt.Sprintf("  Built: %s", Date))
	}
}
