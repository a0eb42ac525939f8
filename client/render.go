package main

import (
	"anonchat/domain"
	"anonchat/infrastructure/console"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

var statusStyles = map[domain.Status]color.Style{
	domain.StatusSending:   color.New(color.FgGray),
	domain.StatusSent:      color.New(color.FgYellow),
	domain.StatusDelivered: color.New(color.FgGreen, color.OpBold),
}

// Printer writes a line for every change of the session.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	senderID string
	colours  bool
	changes  <-chan domain.Message
}

func NewPrinter(out io.Writer, senderID string, colours bool, changes <-chan domain.Message) *Printer {
	return &Printer{out: out, senderID: senderID, colours: colours, changes: changes}
}

func (p *Printer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.changes:
			p.Println(formatMessage(msg, p.senderID, p.colours))
		}
	}
}

// Println serializes writes with the change stream.
func (p *Printer) Println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, line)
}

// History renders persisted messages as a table.
func (p *Printer) History(messages []domain.StoredMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	console.RenderHistory(p.out, messages)
}

// formatMessage renders one line: "#key [status] sender: text (id)".
func formatMessage(msg domain.Message, self string, colours bool) string {
	status := "[" + msg.Status.String() + "]"
	if colours {
		if style, ok := statusStyles[msg.Status]; ok {
			status = style.Render(status)
		}
	}
	sender := msg.SenderID
	if sender == self {
		sender = "me"
	}
	line := fmt.Sprintf("#%d %s %s: %s", msg.LocalKey, status, sender, msg.Text)
	if id, ok := msg.ID(); ok {
		line += " (" + id.String() + ")"
	}
	return line
}
