// Package generation provides interfaces for the external AI services the
// job handlers consume: batch text completion for evaluation and batch
// embedding for vectorization. It abstracts the details of the LLM API
// integration (Gemini) so handlers depend only on the batch contract
// "given N texts, return N results or an error for the batch".
package generation
