// Package gemini implements the generation interfaces against Google's
// Gemini API: batch text completion for evaluation jobs and batch embedding
// for vectorization jobs.
package gemini
