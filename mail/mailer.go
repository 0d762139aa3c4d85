package mail

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is a plain-text notification email.
type Message struct {
	To      string
	Name    string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks SendGrid when an API key is set, otherwise logs mail to stdout.
func New(apiKey, from string) Mailer {
	if apiKey == "" {
		log.Println("⚠️  SENDGRID_API_KEY not set, emails will be printed to the console")
		return &ConsoleMailer{From: from}
	}
	return NewSendgridMailer(apiKey, from)
}

type SendgridMailer struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridMailer(apiKey, from string) *SendgridMailer {
	return &SendgridMailer{
		client:     sendgrid.NewSendClient(apiKey),
		from:       sgmail.NewEmail("Exam Platform", from),
		subjPrefix: "[Exam Platform] ",
	}
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail(msg.Name, msg.To)
	message := sgmail.NewSingleEmail(m.from, m.subjPrefix+msg.Subject, to, msg.Text, "")
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ConsoleMailer prints messages and keeps them in Sent, for development and tests.
type ConsoleMailer struct {
	From          string
	DisableOutput bool

	mu   sync.Mutex
	Sent []Message
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()

	if m.DisableOutput {
		return nil
	}
	body := new(strings.Builder)
	fmt.Fprintf(body, "From: %s\r\n", m.From)
	fmt.Fprintf(body, "To: %s <%s>\r\n", msg.Name, msg.To)
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s\r\n\r\n", msg.Subject)
	fmt.Fprintf(body, "%s\r\n", msg.Text)
	log.Println(body.String())
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *ConsoleMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.Sent))
	copy(out, m.Sent)
	return out
}
