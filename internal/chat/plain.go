package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// RunPlain is the line-oriented fallback for non-TTY stdin: read a line, run
// the turn, print reply and trace. Errors are printed per turn; the loop
// keeps going so a transient failure does not kill the session.
//
// Input is read on a separate goroutine so an interrupt terminates the
// session even while blocked waiting for a line.
func RunPlain(ctx context.Context, s *Session, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "routeprobe chat  alias=%s (EOF or ctrl+c to quit)\n", s.Alias)

	lines := make(chan string)
	scanDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanDone <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, "> ")
		var text string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case err := <-scanDone:
			fmt.Fprintln(out)
			return err
		case text = <-lines:
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		tr, err := s.Do(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, RenderError(err))
			continue
		}
		fmt.Fprintln(out, RenderSnapshot(tr))
		fmt.Fprintln(out, tr.Reply)
		fmt.Fprintln(out, RenderTrace(tr))
		fmt.Fprintln(out)
	}
}
