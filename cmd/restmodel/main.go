// Package main is the entry point for restmodel.
//
// restmodel serves schema-described resources over a REST interface:
// every resource gets list, create, get, replace, update, delete and a
// schema introspection route.
package main

func main() {
	Execute()
}
