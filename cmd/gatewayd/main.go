// Package main is the entry point for gatewayd, a declarative API gateway
// that fans a single inbound request out to one or more backend
// subrequests and assembles their results into a response.
package main

func main() {
	Execute()
}
