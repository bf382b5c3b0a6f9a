// Package domain holds ribo's entities and the rules that need nothing but
// the values themselves: content hashing of documents, citation formatting,
// file format detection, settings defaults and validation, and the state a
// chat turn accumulates.
//
// It imports only the standard library. Every other package may import
// domain; domain imports none of them.
package domain
