// Package winnow defines the wire protocol spoken between the picker and the
// winnowd filter worker. A request is a single line over a fresh Unix domain
// socket connection:
//
//	-eval <quoted-expression>\n
//
// where the expression is JSON wrapped in the quoting scheme from quote.go.
// The worker answers with zero or more response lines and then closes the
// connection; connection close is the only end-of-response signal:
//
//	-print <quoted-payload>\n        replace the accumulated result
//	-print-nonl <quoted-payload>\n   append to the accumulated result
package winnow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Expr operations.
const (
	// OpSource installs the backing command and matcher mode in the worker.
	OpSource = "source"
	// OpFilter asks the worker for candidates matching the given terms.
	OpFilter = "filter"
	// OpShutdown asks the worker to exit.
	OpShutdown = "shutdown"
)

// Expr is a single instruction for the filter worker. Op discriminates which
// of the remaining fields are meaningful.
type Expr struct {
	// Op is "source", "filter", or "shutdown".
	Op string `json:"op"`
	// Command is the backing shell command enumerating candidates (source).
	Command string `json:"command,omitempty"`
	// Dir is the working directory for the backing command (source).
	Dir string `json:"dir,omitempty"`
	// Matcher selects the match mode for subsequent filters (source).
	Matcher string `json:"matcher,omitempty"`
	// Terms are the conjunctive match terms (filter).
	Terms []string `json:"terms,omitempty"`
}

// Source describes a candidate source: the shell command that enumerates
// candidates, the directory to run it in, and the matcher mode the worker
// applies to filter requests.
type Source struct {
	Command string
	Dir     string
	Matcher string
}

// Expr returns the source instruction for s.
func (s Source) Expr() *Expr {
	return &Expr{Op: OpSource, Command: s.Command, Dir: s.Dir, Matcher: s.Matcher}
}

const evalPrefix = "-eval "

// EncodeRequest renders expr as one request line, trailing newline included.
func EncodeRequest(expr *Expr) ([]byte, error) {
	if expr == nil || expr.Op == "" {
		return nil, errors.New("winnow: empty expression")
	}
	data, err := json.Marshal(expr)
	if err != nil {
		return nil, fmt.Errorf("winnow: encode expression: %w", err)
	}
	line := make([]byte, 0, len(evalPrefix)+len(data)*2+1)
	line = append(line, evalPrefix...)
	line = append(line, Quote(string(data))...)
	line = append(line, '\n')
	return line, nil
}

// DecodeRequest parses one request line (without the trailing newline).
func DecodeRequest(line []byte) (*Expr, error) {
	if !bytes.HasPrefix(line, []byte(evalPrefix)) {
		return nil, fmt.Errorf("winnow: not an eval request: %q", line)
	}
	payload := Unquote(string(line[len(evalPrefix):]))
	var expr Expr
	if err := json.Unmarshal([]byte(payload), &expr); err != nil {
		return nil, fmt.Errorf("winnow: decode expression: %w", err)
	}
	if expr.Op == "" {
		return nil, errors.New("winnow: expression missing op")
	}
	return &expr, nil
}

const (
	printPrefix     = "-print "
	printNonlPrefix = "-print-nonl "
)

// Fragment is one decoded response line. Append distinguishes continuation
// fragments from ones that restart the accumulated payload.
type Fragment struct {
	Payload []byte
	Append  bool
}

// EncodeFragment renders one response line carrying payload, trailing
// newline included.
func EncodeFragment(payload []byte, appendMode bool) []byte {
	prefix := printPrefix
	if appendMode {
		prefix = printNonlPrefix
	}
	line := make([]byte, 0, len(prefix)+len(payload)*2+1)
	line = append(line, prefix...)
	line = append(line, Quote(string(payload))...)
	line = append(line, '\n')
	return line
}

// DecodeFragment parses one response line. ok is false for lines that are
// not part of the protocol; callers skip those.
func DecodeFragment(line []byte) (Fragment, bool) {
	switch {
	case bytes.HasPrefix(line, []byte(printNonlPrefix)):
		return Fragment{Payload: []byte(Unquote(string(line[len(printNonlPrefix):]))), Append: true}, true
	case bytes.HasPrefix(line, []byte(printPrefix)):
		return Fragment{Payload: []byte(Unquote(string(line[len(printPrefix):])))}, true
	}
	return Fragment{}, false
}

// EncodeCandidates renders a candidate list as a result payload. A nil list
// encodes as an empty JSON array, never null.
func EncodeCandidates(lines []string) []byte {
	if lines == nil {
		lines = []string{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		// []string cannot fail to marshal.
		return []byte("[]")
	}
	return data
}

// DecodeCandidates parses an accumulated result payload into a candidate
// list. Empty, absent, or malformed payloads decode to no candidates; the
// decoder never reports an error.
func DecodeCandidates(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil
	}
	return lines
}
