// The main package for the catalogsvc executable.
package main

import (
	"github.com/JakeFAU/gfw-catalog-pipeline/cmd"
)

func main() {
	cmd.Execute()
}
