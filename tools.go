//go:build tools

package main

// Pins the godog CLI so feature files can be run standalone with
// `go run github.com/cucumber/godog/cmd/godog`.
import _ "github.com/cucumber/godog/cmd/godog"
