package engine

var References = references
