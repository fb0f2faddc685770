// Package media converts source media into the mono mp3 audio the engines
// accept.
//
// Native audio (.mp3, .wav) passes through untouched. Everything else is
// transcoded by ffmpeg into a sibling file that the caller owns and must
// release with Audio.Cleanup once the task finishes.
package media
