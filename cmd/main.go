package main

import (
	"fmt"
	"os"

	"github.com/industrial-sec/uaenum/internal/cli"
	"github.com/industrial-sec/uaenum/internal/output"
)

func main() {
	version := "v1.0.0"
	banner := `
 _   _   _     _____ _   _ _   _ __  __
| | | | / \   | ____| \ | | | | |  \/  |  %s
| | | |/ _ \  |  _| |  \| | | | | |\/| |
| |_| / ___ \ | |___| |\  | |_| | |  | |
 \___/_/   \_\|_____|_| \_|\___/|_|  |_|
OPC UA Address Space Enumeration
________________________________________O/______
                                        O\
`
	// Print Banner
	fmt.Println(output.Colorize(fmt.Sprintf(banner, version), output.Cyan))

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
