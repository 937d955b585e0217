//go:build !nogremlin

package main

import _ "github.com/syssam/unigraph/dialect/gremlin"
