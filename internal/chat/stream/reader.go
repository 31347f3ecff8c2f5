package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const readSize = 4096

// DeltaFunc receives each delta together with the text accumulated so far
type DeltaFunc func(delta, text string) error

// Result summarises a finished decode loop
type Result struct {
	Text      string
	Deltas    int
	Completed bool // the sentinel was received
	Pending   string
}

// Read pulls chunks from r into a Decoder until the sentinel, EOF, a read
// error, or ctx cancellation. EOF without the sentinel is not an error.
// Once ctx is cancelled onDelta is never called again.
func Read(ctx context.Context, r io.Reader, dec *Decoder, onDelta DeltaFunc) (Result, error) {
	if dec == nil {
		dec = NewDecoder()
	}
	var (
		res   Result
		text  strings.Builder
		chunk = make([]byte, readSize)
	)
	text.WriteString(dec.Text())
	finish := func(err error) (Result, error) {
		res.Text = dec.Text()
		res.Completed = dec.Done()
		res.Pending = dec.Pending()
		return res, err
	}

	for !dec.Done() {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		n, readErr := r.Read(chunk)
		if n > 0 {
			deltas, err := dec.Feed(chunk[:n])
			for _, delta := range deltas {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return finish(ctxErr)
				}
				res.Deltas++
				text.WriteString(delta)
				if onDelta != nil {
					if err := onDelta(delta, text.String()); err != nil {
						return finish(err)
					}
				}
			}
			if err != nil {
				return finish(err)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return finish(nil)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(ctxErr)
			}
			return finish(fmt.Errorf("stream read: %w", readErr))
		}
	}
	return finish(nil)
}
