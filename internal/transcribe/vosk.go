package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// VoskClient talks to a vosk-server websocket endpoint (alphacep/vosk-server
// asr_server.py). The model is loaded by the server; one websocket
// connection carries one recognition stream.
//
// Protocol: a text {"config": {"sample_rate": N}} message, then binary PCM16
// frames each answered by either {"partial": "..."} or a final
// {"text": "..."}, then {"eof": 1} answered by the closing {"text": "..."}.
type VoskClient struct {
	url     string
	model   string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// NewVoskClient creates a client for the vosk-server at url (ws:// or wss://).
// model is informational; the server decides which model it runs.
func NewVoskClient(url, model string, timeout time.Duration) *VoskClient {
	return &VoskClient{
		url:     url,
		model:   model,
		timeout: timeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}
}

// Name returns the recognizer name.
func (vc *VoskClient) Name() string { return "vosk" }

// Model returns the configured model identifier.
func (vc *VoskClient) Model() string { return vc.model }

type voskConfig struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

// voskResult is one server message. Text is nil for partial results.
type voskResult struct {
	Text    *string `json:"text"`
	Partial string  `json:"partial"`
}

// NewSession dials the server and sends the stream configuration. The
// language option is ignored: a vosk model is single-language.
func (vc *VoskClient) NewSession(ctx context.Context, sampleRate int, _ TranscribeOpts) (Session, error) {
	conn, _, err := vc.dialer.DialContext(ctx, vc.url, nil)
	if err != nil {
		return nil, fmt.Errorf("vosk dial %s: %w", vc.url, err)
	}

	s := &voskSession{conn: conn, timeout: vc.timeout}
	var cfg voskConfig
	cfg.Config.SampleRate = sampleRate
	if err := s.writeJSON(ctx, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vosk config: %w", err)
	}
	return s, nil
}

type voskSession struct {
	conn    *websocket.Conn
	timeout time.Duration
	flushed bool
}

func (s *voskSession) AcceptFrame(ctx context.Context, frame []byte) (string, error) {
	if err := s.deadline(ctx, s.conn.SetWriteDeadline); err != nil {
		return "", err
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return "", fmt.Errorf("vosk write frame: %w", err)
	}
	res, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	if res.Text == nil {
		return "", nil
	}
	return *res.Text, nil
}

func (s *voskSession) Flush(ctx context.Context) (string, error) {
	if err := s.writeJSON(ctx, map[string]int{"eof": 1}); err != nil {
		return "", fmt.Errorf("vosk eof: %w", err)
	}
	s.flushed = true
	// The server may still answer with partials before the final result.
	for {
		res, err := s.read(ctx)
		if err != nil {
			return "", err
		}
		if res.Text != nil {
			return *res.Text, nil
		}
	}
}

func (s *voskSession) Close() error {
	if !s.flushed {
		// Tell the server to drop the stream; the result is not wanted.
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
	}
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	err := s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (s *voskSession) writeJSON(ctx context.Context, v any) error {
	if err := s.deadline(ctx, s.conn.SetWriteDeadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *voskSession) read(ctx context.Context) (*voskResult, error) {
	if err := s.deadline(ctx, s.conn.SetReadDeadline); err != nil {
		return nil, err
	}
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("vosk read: %w", err)
	}
	var res voskResult
	if err := json.Unmarshal(msg, &res); err != nil {
		return nil, fmt.Errorf("vosk decode %q: %w", truncate(msg, 128), err)
	}
	return &res, nil
}

// deadline applies the earlier of the context deadline and the per-call
// timeout to the connection.
func (s *voskSession) deadline(ctx context.Context, set func(time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var d time.Time
	if s.timeout > 0 {
		d = time.Now().Add(s.timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return set(d)
}
