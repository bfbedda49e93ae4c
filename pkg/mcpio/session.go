// Package mcpio serves an MCP server over a line-delimited JSON-RPC
// stream, such as a process's stdin and stdout.
package mcpio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pagenorm/pkg/kit"
)

// maxLine bounds a single JSON-RPC message.
const maxLine = 4 << 20

// Serve reads requests from r and writes responses and notifications to w
// until r is exhausted or ctx is done. transport is recorded in the
// request context (see kit.GetTransport).
func Serve(ctx context.Context, srv *server.MCPServer, r io.Reader, w io.Writer, transport string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionID := transport + "_" + uuid.NewString()[:8]
	sess := newSession(sessionID, w)
	if err := srv.RegisterSession(ctx, sess); err != nil {
		return err
	}
	defer srv.UnregisterSession(ctx, sessionID)
	logger.Info("MCP session starting", "session", sessionID)

	ctx = kit.WithTransport(ctx, transport)
	ctx = kit.WithSession(ctx, sessionID)
	ctx = srv.WithContext(ctx, sess)

	go sess.writeNotifications(ctx)

	lines, readErr := readLines(ctx, r)
	for {
		var line []byte
		select {
		case <-ctx.Done():
			// A blocked read on r is abandoned; its goroutine exits once r
			// returns.
			logger.Info("MCP session cancelled", "session", sessionID)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				logger.Info("MCP session ended", "session", sessionID)
				err := <-readErr
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				return ctx.Err()
			}
			line = l
		}
		if len(line) == 0 {
			continue
		}

		response := srv.HandleMessage(ctx, json.RawMessage(line))
		if response == nil {
			continue
		}
		data, err := json.Marshal(response)
		if err != nil {
			logger.Error("MCP marshal failed", "session", sessionID, "error", err)
			continue
		}
		if err := sess.write(data); err != nil {
			return err
		}
	}
}

// readLines scans r in its own goroutine. The lines channel is closed at
// end of input, after which readErr yields the scanner error (or nil). The
// goroutine stops early once ctx is done and its current read returns.
func readLines(ctx context.Context, r io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
		for scanner.Scan() {
			select {
			case lines <- append([]byte(nil), scanner.Bytes()...):
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}

// session implements server.ClientSession for one stream.
type session struct {
	id            string
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool
	writer        io.Writer
	mu            sync.Mutex
}

func newSession(id string, writer io.Writer) *session {
	return &session{
		id:            id,
		notifications: make(chan mcp.JSONRPCNotification, 100),
		writer:        writer,
	}
}

func (s *session) SessionID() string                                   { return s.id }
func (s *session) NotificationChannel() chan<- mcp.JSONRPCNotification { return s.notifications }
func (s *session) Initialize()                                         { s.initialized.Store(true) }
func (s *session) Initialized() bool                                   { return s.initialized.Load() }

// write emits one message followed by a newline. Responses and
// notifications share the writer.
func (s *session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (s *session) writeNotifications(ctx context.Context) {
	for {
		select {
		case notif := <-s.notifications:
			data, err := json.Marshal(notif)
			if err != nil {
				continue
			}
			_ = s.write(data)
		case <-ctx.Done():
			return
		}
	}
}
