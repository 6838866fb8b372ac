package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/bastiangx/imeserve/pkg/session"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

type handlerFunc func(params []any) (any, error)

// Server handles msgpack-RPC requests for one registry.
type Server struct {
	registry *session.Registry
	dec      *msgpack.Decoder
	out      *bufio.Writer
	enc      *msgpack.Encoder
	handlers map[string]handlerFunc
	requests int
}

// NewServer creates a server reading requests from r and writing responses
// to w.
func NewServer(registry *session.Registry, r io.Reader, w io.Writer) *Server {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	dec.UseLooseInterfaceDecoding(true)
	out := bufio.NewWriter(w)

	s := &Server{
		registry: registry,
		dec:      dec,
		out:      out,
		enc:      msgpack.NewEncoder(out),
	}
	s.handlers = map[string]handlerFunc{
		"initialize":    s.handleInitialize,
		"start_context": s.handleStartContext,
		"input_char":    s.handleInputChar,
		"backspace":     s.handleBackspace,
		"cancel":        s.handleCancel,
		"confirm":       s.handleConfirm,
		"keycodes":      s.handleKeycodes,
		"lookup":        s.handleLookup,
		"health":        s.handleHealth,
	}
	return s
}

// Serve processes messages until the input ends or ctx is done. Requests
// are handled one at a time in arrival order.
func (s *Server) Serve(ctx context.Context) error {
	log.Debug("Starting Server.")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		v, err := s.dec.DecodeInterfaceLoose()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("Input closed, stopping server")
				return nil
			}
			return fmt.Errorf("decoding message: %w", err)
		}
		msg, ok := v.([]any)
		if !ok {
			log.Warnf("Dropping non array message of type %T", v)
			continue
		}
		if err := s.handleMessage(msg); err != nil {
			return err
		}
	}
}

// Requests returns how many requests have been answered.
func (s *Server) Requests() int {
	return s.requests
}

func (s *Server) handleMessage(msg []any) error {
	if len(msg) == 0 {
		log.Warn("Dropping empty message")
		return nil
	}
	kind, ok := toInt(msg[0])
	if !ok {
		log.Warnf("Dropping message with type %v", msg[0])
		return nil
	}

	switch kind {
	case msgRequest:
		if len(msg) != 4 {
			log.Warnf("Dropping malformed request of %d elements", len(msg))
			return nil
		}
		method, _ := msg[2].(string)
		params, _ := msg[3].([]any)
		return s.handleRequest(msg[1], method, params)
	case msgNotification:
		if len(msg) >= 2 {
			log.Debugf("Ignoring notification %v", msg[1])
		}
		return nil
	default:
		log.Warnf("Dropping message with type %d", kind)
		return nil
	}
}

func (s *Server) handleRequest(id any, method string, params []any) error {
	start := time.Now()
	handler, ok := s.handlers[method]
	if !ok {
		log.Debugf("Unknown method %q", method)
		return s.sendResponse(id, errNotImpl, nil)
	}

	result, err := handler(params)
	s.requests++
	log.Debug("request", "method", method, "took", time.Since(start))
	if err != nil {
		log.Debugf("%s failed: %v", method, err)
		return s.sendResponse(id, err.Error(), nil)
	}
	return s.sendResponse(id, nil, result)
}

// sendResponse writes one response and flushes it.
func (s *Server) sendResponse(id any, errValue any, result any) error {
	if err := s.enc.Encode([]any{msgResponse, id, errValue, result}); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return s.out.Flush()
}

func (s *Server) handleInitialize(params []any) (any, error) {
	var req InitializeRequest
	if len(params) > 0 {
		if err := convert(params[0], &req); err != nil {
			return nil, fmt.Errorf("invalid initialize parameters: %w", err)
		}
	}
	kind, err := engine.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	cfg := engine.Configuration{Kind: kind, CodeTable: req.CodeTable, PerfectOnly: req.PerfectOnly}
	if err := s.registry.Initialize(cfg); err != nil {
		return nil, err
	}
	return resultOK, nil
}

func (s *Server) handleStartContext(params []any) (any, error) {
	var key string
	if len(params) > 0 && params[0] != nil {
		var ok bool
		if key, ok = params[0].(string); !ok {
			return nil, fmt.Errorf("key must be a string, got %T", params[0])
		}
	}
	key, id, err := s.registry.Start(key)
	if err != nil {
		return nil, err
	}
	return StartResponse{Key: key, ID: uint64(id)}, nil
}

func (s *Server) handleInputChar(params []any) (any, error) {
	key, err := keyParam(params)
	if err != nil {
		return nil, err
	}
	if len(params) < 2 {
		return nil, errors.New("missing character")
	}
	ch, err := runeParam(params[1])
	if err != nil {
		return nil, err
	}
	res, err := s.registry.Feed(key, ch)
	if err != nil {
		return nil, err
	}
	return editResponse(res), nil
}

func (s *Server) handleBackspace(params []any) (any, error) {
	key, err := keyParam(params)
	if err != nil {
		return nil, err
	}
	res, err := s.registry.Backspace(key)
	if err != nil {
		return nil, err
	}
	if res.Cancel {
		return resultCancel, nil
	}
	return editResponse(res), nil
}

func (s *Server) handleCancel(params []any) (any, error) {
	key, err := keyParam(params)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Cancel(key); err != nil {
		return nil, err
	}
	return resultCanceled, nil
}

func (s *Server) handleConfirm(params []any) (any, error) {
	key, err := keyParam(params)
	if err != nil {
		return nil, err
	}
	index := 1
	if len(params) > 1 {
		n, ok := toInt(params[1])
		if !ok {
			return nil, fmt.Errorf("index must be an integer, got %T", params[1])
		}
		index = int(n)
	}
	text, err := s.registry.Confirm(key, index)
	if err != nil {
		return nil, err
	}
	return ConfirmResponse{Text: text}, nil
}

func (s *Server) handleKeycodes([]any) (any, error) {
	return s.registry.Keycodes()
}

func (s *Server) handleLookup(params []any) (any, error) {
	if len(params) == 0 {
		return nil, errors.New("missing prefix")
	}
	prefix, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("prefix must be a string, got %T", params[0])
	}
	limit := 0
	if len(params) > 1 {
		n, ok := toInt(params[1])
		if !ok {
			return nil, fmt.Errorf("limit must be an integer, got %T", params[1])
		}
		limit = int(n)
	}
	return s.registry.Lookup(prefix, limit)
}

func (s *Server) handleHealth([]any) (any, error) {
	return resultOK, nil
}

func editResponse(res session.Result) EditResponse {
	out := EditResponse{
		Codes:      res.Codes,
		Candidates: make([]Candidate, len(res.Candidates)),
	}
	for i, c := range res.Candidates {
		out.Candidates[i] = Candidate{
			Text:  c.Text,
			Codes: string(c.RemainingCodes),
			Match: c.Match.String(),
		}
	}
	return out
}

func keyParam(params []any) (string, error) {
	if len(params) == 0 {
		return "", errors.New("missing context key")
	}
	key, ok := params[0].(string)
	if !ok {
		return "", fmt.Errorf("context key must be a string, got %T", params[0])
	}
	return key, nil
}

func runeParam(v any) (rune, error) {
	if str, ok := v.(string); ok {
		r, size := utf8.DecodeRuneInString(str)
		if size == 0 || size != len(str) || r == utf8.RuneError {
			return 0, fmt.Errorf("expected a single character, got %q", str)
		}
		return r, nil
	}
	if n, ok := toInt(v); ok && n >= 0 && n <= utf8.MaxRune && utf8.ValidRune(rune(n)) {
		return rune(n), nil
	}
	return 0, fmt.Errorf("invalid character %v", v)
}

// toInt accepts any integer type the decoder may produce.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint:
		return int64(n), true
	default:
		return 0, false
	}
}

// convert round trips a decoded value into a tagged struct.
func convert(v any, dst any) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, dst)
}
