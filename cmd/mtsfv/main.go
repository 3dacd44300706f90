package main

import (
	"github.com/MTLaboratory/MTSFV/internal/cmd"
)

func main() {
	cmd.Execute()
}
