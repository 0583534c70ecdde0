package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits. Anything past these aborts the read before the
// payload is buffered.
const (
	// MaxArrayLen caps RESP array multiplicity. Commands carry at most
	// a handful of args; variadic DEL/EXISTS stay far below this.
	MaxArrayLen = 1024

	// MaxBulkLen caps a single bulk string at 512KB. Store values are
	// small JSON documents, so this is generous.
	MaxBulkLen = 512 * 1024

	// MaxInlineLen caps an inline command line at 4KB.
	MaxInlineLen = 4 * 1024
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

const crlf = "\r\n"

// ReadCommand reads one client command, either as a RESP array or as
// an inline command line. A nil slice with nil error means an empty
// command the caller should ignore.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	first, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == '*' {
		return readArrayCommand(r)
	}
	return readInlineCommand(r)
}

// readInlineCommand handles the "PING\r\n" form some clients send on
// plain telnet-style connections.
func readInlineCommand(r *bufio.Reader) ([][]byte, error) {
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil, nil
	}
	args := make([][]byte, len(fields))
	for i, f := range fields {
		args[i] = []byte(f)
	}
	return args, nil
}

func readArrayCommand(r *bufio.Reader) ([][]byte, error) {
	// Header is short: "*<number>\r\n"
	header, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(header) < 2 || header[0] != '*' {
		return nil, fmt.Errorf("%w: expected array", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(header[1:]))
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: invalid array length", ErrProtocol)
	case n <= 0:
		return nil, nil
	case n > MaxArrayLen:
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	args := make([][]byte, n)
	for i := range args {
		if args[i], err = readBulkString(r); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func readBulkString(r *bufio.Reader) ([]byte, error) {
	// Header is short: "$<number>\r\n"
	header, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(header) < 2 || header[0] != '$' {
		// Tolerate simple strings as args.
		if len(header) >= 2 && header[0] == '+' {
			return []byte(header[1:]), nil
		}
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}

	n, err := strconv.Atoi(strings.TrimSpace(header[1:]))
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	case n == -1:
		return nil, nil
	case n < 0:
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	case n > MaxBulkLen:
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	payload := make([]byte, n+2)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if string(payload[n:]) != crlf {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return payload[:n], nil
}

// readLine reads one CRLF-terminated line, enforcing maxLen even when
// the line spans multiple reader buffers.
func readLine(r *bufio.Reader, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", fmt.Errorf("%w: invalid maxLen", ErrProtocol)
	}

	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		line = append(line, frag...)
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", err
		}
		if len(line) > maxLen {
			return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
		}
	}

	if len(line) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(line) < 2 || !bytes.HasSuffix(line, []byte(crlf)) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(line[:len(line)-2]), nil
}

func WriteSimpleString(w *bufio.Writer, s string) error {
	return writeLine(w, '+', s)
}

func WriteError(w *bufio.Writer, s string) error {
	return writeLine(w, '-', s)
}

func WriteInteger(w *bufio.Writer, n int64) error {
	return writeLine(w, ':', strconv.FormatInt(n, 10))
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1" + crlf)
	return err
}

func WriteBulk(w *bufio.Writer, b []byte) error {
	if b == nil {
		return WriteNullBulk(w)
	}
	if err := writeLine(w, '$', strconv.Itoa(len(b))); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString(crlf)
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	return WriteBulk(w, []byte(s))
}

func WriteArrayHeader(w *bufio.Writer, n int) error {
	return writeLine(w, '*', strconv.Itoa(n))
}

func writeLine(w *bufio.Writer, typ byte, body string) error {
	if err := w.WriteByte(typ); err != nil {
		return err
	}
	if _, err := w.WriteString(body); err != nil {
		return err
	}
	_, err := w.WriteString(crlf)
	return err
}

// normalizeCommandName uppercases the command token, skipping the
// allocation when the client already sent it uppercased.
func normalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
