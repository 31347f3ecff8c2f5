// Package stream decodes assistant replies delivered as a server-sent event
// stream.
//
// Wire format: newline-delimited records. Blank lines and lines starting with
// ':' are ignored, as is anything not starting with "data: ". A data payload
// of "[DONE]" ends the stream; any other payload is an OpenAI-style chunk
// whose choices[0].delta.content carries the next text fragment.
//
//	data: {"choices":[{"delta":{"content":"Hel"}}]}
//	: keep-alive
//	data: {"choices":[{"delta":{"content":"lo"}}]}
//	data: [DONE]
//
// Chunk boundaries carry no meaning: the Decoder keeps the unterminated tail
// of the input between calls to Feed.
package stream
