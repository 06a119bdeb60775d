package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pzverkov/qkd-go/internal/constants"
	qerrors "github.com/pzverkov/qkd-go/internal/errors"
)

// Link exposes the quantum and public lanes over one net.Conn.
//
// A Link is owned by exactly one reading goroutine at a time; writes are
// serialized internally so a best-effort ABORT can be sent from teardown
// paths without racing the owner.
type Link struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration

	writeMu sync.Mutex
}

// NewLink wraps conn. timeout bounds every blocking receive; zero disables
// deadlines (useful with in-memory pipes in tests).
func NewLink(conn net.Conn, timeout time.Duration) *Link {
	return &Link{
		conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: timeout,
	}
}

// SetTimeout changes the receive deadline applied to subsequent reads.
func (l *Link) SetTimeout(d time.Duration) {
	l.timeout = d
}

// Timeout returns the current receive deadline.
func (l *Link) Timeout() time.Duration {
	return l.timeout
}

// ReadFrame reads one newline-delimited frame body. Errors are classified
// into the wire taxonomy: ErrTimeout is retryable, ErrConnectionClosed is
// terminal, anything else is wrapped.
func (l *Link) ReadFrame() (string, error) {
	return l.readFrameDeadline(l.timeout)
}

// ReadFrameTimeout is ReadFrame with a one-shot deadline override, used by
// loops that poll a cancellation token between short reads.
func (l *Link) ReadFrameTimeout(d time.Duration) (string, error) {
	return l.readFrameDeadline(d)
}

func (l *Link) readFrameDeadline(d time.Duration) (string, error) {
	if d > 0 {
		_ = l.conn.SetReadDeadline(time.Now().Add(d))
	}
	line, err := l.r.ReadString('\n')
	if err != nil {
		// A partial frame cut off by EOF is unusable either way.
		return "", classify(err)
	}
	if len(line) > constants.MaxFrameBytes {
		return "", fmt.Errorf("%w: frame exceeds %d bytes", qerrors.ErrMalformedFrame, constants.MaxFrameBytes)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteFrame writes one frame body followed by a newline.
func (l *Link) WriteFrame(frame string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.timeout > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(l.timeout))
	}
	if _, err := io.WriteString(l.conn, frame+"\n"); err != nil {
		return classify(err)
	}
	return nil
}

// SendEvent transmits a photon event on the quantum lane.
func (l *Link) SendEvent(ev Event) error {
	return l.WriteFrame(EncodeEvent(ev))
}

// ReceiveEvent reads the next frame expecting a photon event.
//
// Outcomes:
//   - (ev, nil, nil): a photon event.
//   - (_, msg, nil): a well-formed public message arrived instead; the
//     caller decides how to redirect it.
//   - (_, nil, err): ErrConnectionClosed, ErrTimeout, or ErrMalformedFrame.
func (l *Link) ReceiveEvent() (Event, *Message, error) {
	frame, err := l.ReadFrame()
	if err != nil {
		return Event{}, nil, err
	}
	if IsEventFrame(frame) {
		ev, err := ParseEvent(frame)
		if err != nil {
			return Event{}, nil, err
		}
		return ev, nil, nil
	}
	msg, err := ParseMessage(frame)
	if err != nil {
		return Event{}, nil, err
	}
	return Event{}, &msg, nil
}

// SendMessage transmits a tagged message on the public lane.
func (l *Link) SendMessage(tag Tag, payload string) error {
	return l.WriteFrame(EncodeMessage(tag, payload))
}

// ReceiveMessage reads the next frame expecting a tagged public message.
// A photon frame here means the lanes have desynced: ErrLaneConfusion.
func (l *Link) ReceiveMessage() (Message, error) {
	frame, err := l.ReadFrame()
	if err != nil {
		return Message{}, err
	}
	if IsEventFrame(frame) {
		return Message{}, fmt.Errorf("%w: photon frame on public lane", qerrors.ErrLaneConfusion)
	}
	return ParseMessage(frame)
}

// Close closes the underlying connection.
func (l *Link) Close() error {
	return l.conn.Close()
}

// LocalAddr returns the local network address.
func (l *Link) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (l *Link) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}

// classify maps transport errors onto the wire taxonomy.
func classify(err error) error {
	var nerr net.Error
	switch {
	case errors.As(err, &nerr) && nerr.Timeout():
		return qerrors.ErrTimeout
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed):
		return qerrors.ErrConnectionClosed
	default:
		return fmt.Errorf("%w: %v", qerrors.ErrConnectionClosed, err)
	}
}
