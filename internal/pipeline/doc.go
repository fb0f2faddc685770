// Package pipeline drives a batch of media files through normalization,
// transcription and rendering.
//
// A Runner owns a fixed pool of workers that consume tasks from a channel.
// Each task walks the lifecycle pending → normalizing → transcribing →
// rendering → done, and any stage may end it in failed. The Runner consults
// the result cache before calling a backend, retries only failures the
// services package marks retryable, and writes outputs next to their sources
// through an atomic rename.
//
// Cancellation stops dispatch. Tasks already running finish the stage they
// are in, release their temporary audio, and the Summary records how many
// files never started.
package pipeline
