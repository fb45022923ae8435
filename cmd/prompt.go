package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks a yes/no question. Anything other than y or yes, including
// EOF, counts as no.
func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprint(out, question)

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// ask runs confirm in the background. The channel receives exactly one answer.
func ask(in *bufio.Reader, out io.Writer, question string) <-chan bool {
	answer := make(chan bool, 1)
	go func() {
		answer <- confirm(in, out, question)
	}()
	return answer
}
