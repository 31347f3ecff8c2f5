// Package ws pushes desktop changes to the browser over a WebSocket.
//
// On connect the client receives a snapshot of its desktop, then one
// "window" message per registry event and one "chat" message per
// conversation change. Clients may send "ping", "snapshot" and "chat"
// messages; a chat reply streams back as chat changes followed by
// "complete".
package ws
