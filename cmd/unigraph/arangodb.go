//go:build !noarangodb

package main

import _ "github.com/syssam/unigraph/dialect/arangodb"
