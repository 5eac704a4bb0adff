package rolesync

import (
	"embed"
	"io/fs"
)

// Embedded role template tree.
// Files ending in .tmpl are rendered against the deployment variables when
// synchronized; everything else is copied as is.

//go:embed files
var templateFiles embed.FS

//go:embed examples/deployment.yml
var exampleConfig []byte

// Templates returns the embedded template tree rooted at its top directory.
func Templates() fs.FS {
	sub, err := fs.Sub(templateFiles, "files")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory exists
	}
	return sub
}

// ExampleConfig returns an example deployment.yml.
func ExampleConfig() []byte {
	return append([]byte(nil), exampleConfig...)
}
