// Command voxctl trains, inspects and probes Vox models offline.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.Bad.Render("error:"), err)
		os.Exit(1)
	}
}
