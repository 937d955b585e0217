//go:build !noneo4j

package main

import _ "github.com/syssam/unigraph/dialect/neo4j"
