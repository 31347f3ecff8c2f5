// Package chat holds the assistant conversation of a desktop.
//
// A Conversation is the ordered message list shown in the assistant window.
// Client posts the history to the chat backend and returns its event-stream
// body; Assistant drives one request at a time, feeding the body through
// stream.Read and mirroring the accumulated reply into the Conversation.
package chat
