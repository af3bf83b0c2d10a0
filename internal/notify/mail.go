package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer emails order notifications through an SMTP relay.
type Mailer struct {
	addr string
	from string
	auth smtp.Auth
	loc  *time.Location
	send SendFunc
}

// NewMailer returns a Mailer for the relay at addr ("host:port"). Credentials
// are optional; when set, PLAIN auth is used.
func NewMailer(addr, from, username, password string, loc *time.Location) *Mailer {
	m := &Mailer{addr: addr, from: from, loc: loc, send: smtp.SendMail}
	if username != "" {
		host, _, _ := strings.Cut(addr, ":")
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	return m
}

// Send emails msg to recipient. The context only short-circuits an already
// cancelled send; net/smtp has no per-call deadline.
func (m *Mailer) Send(ctx context.Context, to string, msg OrderCreated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{to}, m.compose(to, msg)); err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	return nil
}

func (m *Mailer) compose(to string, msg OrderCreated) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: New Order: %s\r\n", msg.OrderID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString("New order received!\r\n\r\n")
	fmt.Fprintf(&b, "Order ID: %s\r\n", msg.OrderID)
	fmt.Fprintf(&b, "Table: %s\r\n", msg.Table)
	if msg.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\r\n", msg.CustomerName)
	}
	fmt.Fprintf(&b, "Items: %d\r\n", msg.ItemCount)
	fmt.Fprintf(&b, "Total: %s\r\n", Rupiah(msg.Total))
	fmt.Fprintf(&b, "Time: %s\r\n\r\n", msg.CreatedAt.In(m.loc).Format("02/01/2006 15.04.05"))
	b.WriteString("Check the admin panel for details.\r\n")
	return []byte(b.String())
}

var idPrinter = message.NewPrinter(language.Indonesian)

// Rupiah formats an amount with Indonesian digit grouping, e.g. "Rp 70.000".
func Rupiah(amount int64) string {
	return idPrinter.Sprintf("Rp %d", amount)
}
