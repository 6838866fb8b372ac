// Package cli handles cmd line input for DBG and testing engine behavior in real time
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/imeserve/internal/utils"
	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/bastiangx/imeserve/pkg/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const replKey = "repl"

var (
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	codeStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().Bold(true)
)

// InputHandler drives one input context from typed lines. Each line is fed
// code by code; lines starting with ':' are commands:
//
//	:bs [n]   backspace n times (default 1)
//	:c [n]    confirm candidate n (default 1)
//	:x        cancel the context
//	:k        print the keycodes
//	:l text   reverse lookup
//	:q        quit
type InputHandler struct {
	registry *session.Registry
	in       io.Reader
	out      io.Writer
	limit    int
	active   bool
}

// NewInputHandler creates a handler printing up to limit candidates per
// step. A limit of zero prints all of them.
func NewInputHandler(registry *session.Registry, in io.Reader, out io.Writer, limit int) *InputHandler {
	return &InputHandler{
		registry: registry,
		in:       in,
		out:      out,
		limit:    limit,
	}
}

// Start begins the interface loop. It returns nil when the input ends or
// :q is entered.
func (h *InputHandler) Start() error {
	fmt.Fprintln(h.out, "imeserve REPL [DBG]")
	fmt.Fprintln(h.out, "type codes and press Enter, :bs :c :x :k :l :q for commands")
	reader := bufio.NewReader(h.in)

	for {
		fmt.Fprint(h.out, promptStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		done := err != nil

		line = strings.TrimSpace(line)
		if line != "" {
			if quit := h.handleLine(line); quit {
				return nil
			}
		}
		if done {
			fmt.Fprintln(h.out)
			return nil
		}
	}
}

func (h *InputHandler) handleLine(line string) bool {
	if !strings.HasPrefix(line, ":") {
		h.feed(line)
		return false
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "q":
		return true
	case "bs":
		n := 1
		if arg != "" {
			var err error
			if n, err = strconv.Atoi(arg); err != nil || n < 1 {
				log.Errorf("Invalid count: %s", arg)
				return false
			}
		}
		h.backspace(n)
	case "c":
		n := 1
		if arg != "" {
			var err error
			if n, err = strconv.Atoi(arg); err != nil {
				log.Errorf("Invalid index: %s", arg)
				return false
			}
		}
		h.confirm(n)
	case "x":
		if h.active {
			_ = h.registry.Cancel(replKey)
			h.active = false
		}
		fmt.Fprintln(h.out, "canceled")
	case "k":
		kc, err := h.registry.Keycodes()
		if err != nil {
			log.Error(err)
			return false
		}
		fmt.Fprintf(h.out, "keycodes: %s\n", kc)
	case "l":
		h.lookup(arg)
	default:
		log.Errorf("Unknown command: %s", line)
	}
	return false
}

func (h *InputHandler) ensureContext() bool {
	if h.active {
		return true
	}
	if _, _, err := h.registry.Start(replKey); err != nil {
		log.Errorf("Cannot start context: %v", err)
		return false
	}
	h.active = true
	return true
}

func (h *InputHandler) feed(codes string) {
	if !h.ensureContext() {
		return
	}
	var res session.Result
	start := time.Now()
	for _, ch := range codes {
		var err error
		if res, err = h.registry.Feed(replKey, ch); err != nil {
			log.Error(err)
			return
		}
	}
	log.Debugf("Took [ %v ] for '%s'", time.Since(start), codes)
	h.print(res)
}

func (h *InputHandler) backspace(n int) {
	if !h.active {
		fmt.Fprintln(h.out, "nothing to delete")
		return
	}
	for i := 0; i < n; i++ {
		res, err := h.registry.Backspace(replKey)
		if err != nil {
			log.Error(err)
			return
		}
		if res.Cancel {
			h.active = false
			fmt.Fprintln(h.out, "cancel")
			return
		}
		if i == n-1 {
			h.print(res)
		}
	}
}

func (h *InputHandler) confirm(n int) {
	if !h.active {
		fmt.Fprintln(h.out, "nothing to confirm")
		return
	}
	text, err := h.registry.Confirm(replKey, n)
	if err != nil {
		log.Error(err)
		return
	}
	h.active = false
	fmt.Fprintf(h.out, "commit: %s\n", textStyle.Render(text))
}

func (h *InputHandler) lookup(prefix string) {
	results, err := h.registry.Lookup(prefix, h.limit)
	if err != nil {
		log.Error(err)
		return
	}
	if len(results) == 0 {
		log.Warnf("No entries found for '%s'", prefix)
		return
	}
	for _, r := range results {
		fmt.Fprintf(h.out, "%s\t%s\t%s\n", textStyle.Render(r.Text), r.Code, utils.FormatWithCommas(int(r.Priority)))
	}
}

func (h *InputHandler) print(res session.Result) {
	fmt.Fprintf(h.out, "codes: %s\n", res.Codes)
	if len(res.Candidates) == 0 {
		fmt.Fprintln(h.out, "  (no candidates)")
		return
	}
	shown := res.Candidates
	if h.limit > 0 && len(shown) > h.limit {
		shown = shown[:h.limit]
	}
	for i, c := range shown {
		fmt.Fprintf(h.out, "%2d. %s%s\n", i+1, textStyle.Render(c.Text), renderRemaining(c))
	}
	if len(shown) < len(res.Candidates) {
		fmt.Fprintf(h.out, "  ... %d more\n", len(res.Candidates)-len(shown))
	}
}

func renderRemaining(c engine.Candidate) string {
	if c.Match == engine.PerfectMatch {
		return ""
	}
	return " " + codeStyle.Render(string(c.RemainingCodes))
}
