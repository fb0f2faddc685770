// Package language normalizes the language hint passed to the local model
// engine.
package language
