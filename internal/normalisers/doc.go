// Package normalisers provides implementations of the Normaliser interface
// for the supported literature formats. Each normaliser turns raw file bytes
// into addressable pages: PDF pages, Markdown sections or a single text page.
//
// Normalisers are registered with the Registry at startup.
package normalisers
