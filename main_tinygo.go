//go:build tinygo

package main

import (
	"arbitros/app"
	"arbitros/hal"
)

func main() {
	app.Run(hal.New(), app.DefaultConfig())
}
