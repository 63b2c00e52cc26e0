// Package data holds files compiled into the binary.
package data

import "embed"

var (
	//go:embed vox.yaml
	Policies embed.FS
)

// DefaultPolicy is the file name of the built-in policy inside Policies.
const DefaultPolicy = "vox.yaml"
