package mpd

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Conn is the byte stream the codec frames over. Both *net.TCPConn and
// *net.UnixConn satisfy it; tests use net.Pipe.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Pair is one KEY: VALUE line of a response.
type Pair struct {
	Key   string
	Value string
}

// Codec frames the daemon's request/response line protocol over a Conn.
//
// The codec owns the stream: requests are a keyword plus space-separated
// (quoted) arguments, responses are KEY: VALUE lines terminated by OK,
// list_OK, or an ACK error line. Binary attachments are a "binary: <len>"
// pair followed by exactly len raw bytes and a newline.
//
// Codec methods are not safe for concurrent use; the Client serialises
// access from its I/O worker.
type Codec struct {
	conn    Conn
	r       *bufio.Reader
	timeout time.Duration
}

// NewCodec wraps a connection.
func NewCodec(conn Conn) *Codec {
	return &Codec{
		conn: conn,
		r:    bufio.NewReader(conn),
	}
}

// Close closes the underlying stream.
func (c *Codec) Close() error {
	return c.conn.Close()
}

// SetTimeout sets the per-read timeout applied to subsequent reads.
// Zero disables the deadline (used for the idle channel).
func (c *Codec) SetTimeout(d time.Duration) {
	c.timeout = d
}

// quoteArg applies the daemon's argument quoting rules: backslash escapes
// backslash and double quote, and any argument containing whitespace,
// quotes, or escapes is wrapped in double quotes. Empty arguments are
// always quoted.
func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"'\\") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(arg); i++ {
		ch := arg[i]
		if ch == '"' || ch == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	b.WriteByte('"')
	return b.String()
}

// Send serialises a command line and writes it to the stream.
func (c *Codec) Send(command string, args ...string) error {
	var b strings.Builder
	b.WriteString(command)
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(arg))
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(c.conn, b.String()); err != nil {
		return err
	}
	return nil
}

// ackRE matches the daemon's error line: ACK [code@index] {command} message
var ackRE = regexp.MustCompile(`^ACK \[(\d+)@(\d+)\] \{([^}]*)\} (.*)$`)

// ReadLine reads one newline-terminated line. EOF mid-response is
// reported as ErrClosed.
func (c *Codec) ReadLine() (string, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", err
		}
	} else {
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			return "", err
		}
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", ErrClosed
		}
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// parseAck turns an ACK line into a *RemoteError.
func parseAck(line string) error {
	m := ackRE.FindStringSubmatch(line)
	if m == nil {
		return protocolErrorf("malformed ACK line %q", line)
	}
	code, _ := strconv.Atoi(m[1])
	index, _ := strconv.Atoi(m[2])
	return &RemoteError{
		Code:    code,
		Index:   index,
		Command: m[3],
		Message: m[4],
	}
}

// splitPair splits a "KEY: VALUE" line. Lines without the separator are
// malformed framing.
func splitPair(line string) (Pair, error) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		// "key:" with an empty value has no trailing space
		if strings.HasSuffix(line, ":") {
			return Pair{Key: line[:len(line)-1]}, nil
		}
		return Pair{}, protocolErrorf("malformed response line %q", line)
	}
	return Pair{Key: line[:idx], Value: line[idx+2:]}, nil
}

// ReadResponse reads KEY: VALUE pairs until a terminating OK. An ACK line
// is returned as a *RemoteError, malformed framing as a *ProtocolError,
// and EOF as ErrClosed. Batch element terminators (list_OK) are surfaced
// as pairs with key "list_OK" so callers of command lists can split on
// them.
func (c *Codec) ReadResponse() ([]Pair, error) {
	var pairs []Pair
	for {
		line, err := c.ReadLine()
		if err != nil {
			return nil, err
		}
		switch {
		case line == "OK" || strings.HasPrefix(line, "OK "):
			return pairs, nil
		case line == "list_OK":
			pairs = append(pairs, Pair{Key: "list_OK"})
		case strings.HasPrefix(line, "ACK "):
			return nil, parseAck(line)
		default:
			p, err := splitPair(line)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, p)
		}
	}
}

// ReadBinary consumes exactly n payload bytes, the mandatory terminating
// newline, and the final OK line.
func (c *Codec) ReadBinary(n int) ([]byte, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrClosed
		}
		return nil, err
	}
	nl, err := c.r.ReadByte()
	if err != nil {
		return nil, ErrClosed
	}
	if nl != '\n' {
		return nil, protocolErrorf("missing newline after binary payload")
	}
	line, err := c.ReadLine()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(line, "ACK ") {
		return nil, parseAck(line)
	}
	if line != "OK" {
		return nil, protocolErrorf("expected OK after binary payload, got %q", line)
	}
	return buf, nil
}

// BinaryChunk is one slice of a chunked binary response, with the
// metadata pairs that preceded it.
type BinaryChunk struct {
	Size int64  // Advertised total size of the attachment
	MIME string // Content type hint (readpicture only), may be empty
	Data []byte
}

// ReadBinaryChunk parses the response to albumart/readpicture: size and
// type pairs followed by a binary payload. A response that terminates
// without a binary pair yields a chunk with nil Data (readpicture reports
// size 0 for files with no embedded picture).
func (c *Codec) ReadBinaryChunk() (*BinaryChunk, error) {
	chunk := &BinaryChunk{}
	for {
		line, err := c.ReadLine()
		if err != nil {
			return nil, err
		}
		switch {
		case line == "OK":
			return chunk, nil
		case strings.HasPrefix(line, "ACK "):
			return nil, parseAck(line)
		}
		p, err := splitPair(line)
		if err != nil {
			return nil, err
		}
		switch p.Key {
		case "size":
			chunk.Size, err = strconv.ParseInt(p.Value, 10, 64)
			if err != nil {
				return nil, protocolErrorf("bad size %q", p.Value)
			}
		case "type":
			chunk.MIME = p.Value
		case "binary":
			n, err := strconv.Atoi(p.Value)
			if err != nil || n < 0 {
				return nil, protocolErrorf("bad binary length %q", p.Value)
			}
			chunk.Data, err = c.ReadBinary(n)
			if err != nil {
				return nil, err
			}
			return chunk, nil
		}
	}
}
