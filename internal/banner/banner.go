// Package banner prints the CLI's startup banner.
package banner

import "fmt"

const art = `
   ___ ____  _____  _
  / __|  _ \|  ___|/ \   __ _
 | |  | |_) | |_  / _ \ / _  |
 | |__|  _ <|  _|/ ___ \ (_| |
  \___|_| \_\_| /_/   \_\__, |
                        |___/
`

// Banner renders the startup banner for the given version string.
func Banner(version string) string {
	return fmt.Sprintf("%s  crftag %s — sequence tagging CRF\n\n", art, version)
}
