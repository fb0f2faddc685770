// Package whisperx runs the WhisperX model through uvx and reads back its JSON
// segment output.
//
// Configuration options (model, CUDA, VAD method, language) are passed via
// Config. A command runner hook replaces process execution in tests.
package whisperx
