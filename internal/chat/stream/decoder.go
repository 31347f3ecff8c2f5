package stream

import (
	"bytes"
	"errors"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	dataPrefix = "data: "
	// Sentinel terminates an assistant stream
	Sentinel = "[DONE]"

	// DefaultMaxBuffer bounds the carry-over buffer
	DefaultMaxBuffer = 1 << 20
)

// ErrBufferOverflow is returned when unterminated input outgrows the buffer limit.
var ErrBufferOverflow = errors.New("stream: line exceeds buffer limit")

// completionChunk is the subset of an OpenAI-style streaming chunk we read
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns an arbitrarily chunked event stream into assistant text
// deltas. Lines may span chunks; a line whose payload is not yet valid JSON
// is put back at the front of the buffer and retried when more input arrives.
// Valid JSON without a string delta is consumed silently.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf       []byte
	text      strings.Builder
	done      bool
	deferred  bool
	maxBuffer int
}

// NewDecoder creates a decoder with the default buffer limit
func NewDecoder() *Decoder {
	return &Decoder{maxBuffer: DefaultMaxBuffer}
}

// NewDecoderSize creates a decoder whose carry-over buffer may hold at most max bytes
func NewDecoderSize(max int) *Decoder {
	if max <= 0 {
		max = DefaultMaxBuffer
	}
	return &Decoder{maxBuffer: max}
}

// Feed consumes one chunk and returns the deltas it completed, in order.
// Once the sentinel has been seen Feed ignores further input.
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	if d.done {
		return nil, nil
	}
	d.buf = append(d.buf, chunk...)
	d.deferred = false

	var deltas []string
	for {
		nl := bytes.IndexByte(d.buf, '\n')
		if nl < 0 {
			break
		}
		line := d.buf[:nl]
		rest := d.buf[nl+1:]
		line = bytes.TrimSuffix(line, []byte{'\r'})

		if len(bytes.TrimSpace(line)) == 0 || line[0] == ':' {
			d.buf = rest
			continue
		}
		if !bytes.HasPrefix(line, []byte(dataPrefix)) {
			d.buf = rest
			continue
		}

		payload := strings.TrimSpace(string(line[len(dataPrefix):]))
		if payload == Sentinel {
			d.done = true
			d.buf = nil
			break
		}

		if !sonic.ValidString(payload) {
			// Leave the line (and its newline) at the front and wait for more input
			d.deferred = true
			break
		}
		d.buf = rest

		if content := deltaContent(payload); content != "" {
			d.text.WriteString(content)
			deltas = append(deltas, content)
		}
	}

	// Compact so the backing array does not grow with the whole stream
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 2*len(d.buf) {
		d.buf = append([]byte(nil), d.buf...)
	}

	if len(d.buf) > d.maxBuffer {
		return deltas, ErrBufferOverflow
	}
	return deltas, nil
}

// deltaContent returns choices[0].delta.content of a well-formed payload.
// Payloads of any other shape carry no delta.
func deltaContent(payload string) string {
	var parsed completionChunk
	if err := sonic.UnmarshalString(payload, &parsed); err != nil || len(parsed.Choices) == 0 {
		return ""
	}
	return parsed.Choices[0].Delta.Content
}

// Done reports whether the sentinel has been received
func (d *Decoder) Done() bool {
	return d.done
}

// Deferred reports whether the last Feed stopped on an unparseable line
func (d *Decoder) Deferred() bool {
	return d.deferred
}

// Text returns all assistant text decoded so far
func (d *Decoder) Text() string {
	return d.text.String()
}

// Pending returns the buffered input not yet consumed
func (d *Decoder) Pending() string {
	return string(d.buf)
}
