package smtpclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"
)

// Client speaks just enough SMTP to hand one message to a relay: a single
// scripted conversation, no retries, and the connection is closed on every
// exit path. A failed send is reported to the caller, never re-attempted.
type Client struct {
	addr    string
	from    string
	user    string
	pass    string
	timeout time.Duration
}

// New builds a client for one relay. Empty credentials skip the AUTH step,
// which is how the development relay runs.
func New(host string, port int, from, user, pass string) *Client {
	return &Client{
		addr:    fmt.Sprintf("%s:%d", host, port),
		from:    from,
		user:    user,
		pass:    pass,
		timeout: 15 * time.Second,
	}
}

// Send runs the MAIL FROM / RCPT TO / DATA exchange for one message.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	tc := textproto.NewConn(conn)

	// Server greets first
	if _, _, err := tc.ReadResponse(220); err != nil {
		return fmt.Errorf("smtp greeting failed: %w", err)
	}

	if err := c.exchange(tc, "HELO miyomint", 250); err != nil {
		return err
	}
	if err := c.authenticate(tc); err != nil {
		return err
	}

	steps := []struct {
		cmd  string
		want int
	}{
		{fmt.Sprintf("MAIL FROM:<%s>", c.from), 250},
		{fmt.Sprintf("RCPT TO:<%s>", to), 250},
		{"DATA", 354},
	}
	for _, step := range steps {
		if err := c.exchange(tc, step.cmd, step.want); err != nil {
			return err
		}
	}

	// DotWriter dot-stuffs body lines and terminates the message
	dw := tc.DotWriter()
	if _, err := dw.Write([]byte(c.buildMessage(to, subject, body))); err != nil {
		dw.Close()
		return fmt.Errorf("smtp data write failed: %w", err)
	}
	if err := dw.Close(); err != nil {
		return fmt.Errorf("smtp data write failed: %w", err)
	}
	if _, _, err := tc.ReadResponse(250); err != nil {
		return fmt.Errorf("smtp message rejected: %w", err)
	}

	// Best effort; the message is already accepted
	_ = tc.PrintfLine("QUIT")
	return nil
}

// authenticate runs the AUTH LOGIN exchange: a 334 challenge for the
// username, another for the password, 235 on acceptance.
func (c *Client) authenticate(tc *textproto.Conn) error {
	if c.user == "" {
		return nil
	}
	if err := c.exchange(tc, "AUTH LOGIN", 334); err != nil {
		return err
	}
	b64 := base64.StdEncoding
	if err := c.step(tc, b64.EncodeToString([]byte(c.user)), "AUTH username", 334); err != nil {
		return err
	}
	return c.step(tc, b64.EncodeToString([]byte(c.pass)), "AUTH password", 235)
}

func (c *Client) exchange(tc *textproto.Conn, cmd string, want int) error {
	return c.step(tc, cmd, firstWord(cmd), want)
}

func (c *Client) step(tc *textproto.Conn, line, label string, want int) error {
	if err := tc.PrintfLine("%s", line); err != nil {
		return fmt.Errorf("smtp write failed at %q: %w", label, err)
	}
	if _, _, err := tc.ReadResponse(want); err != nil {
		return fmt.Errorf("smtp %s refused: %w", label, err)
	}
	return nil
}

func (c *Client) buildMessage(to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: MiyoMint <%s>\r\n", c.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

func firstWord(cmd string) string {
	if idx := strings.IndexByte(cmd, ' '); idx != -1 {
		return cmd[:idx]
	}
	return cmd
}
