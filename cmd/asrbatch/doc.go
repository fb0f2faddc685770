// Package main hosts the asrbatch CLI entrypoint and command graph.
//
// The root command runs a transcription batch over a file or directory. The
// cache, config and status subcommands manage the result cache, scaffold
// configuration and report whether the external tools a batch needs are
// available. Configuration resolution and logger setup live in
// commandContext so subcommands stay declarative.
package main
