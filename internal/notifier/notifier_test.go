package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	from string
	to   []string
	body []byte
}

func testEmailNotifier(t *testing.T, fail map[string]bool) (*EmailNotifier, *[]delivery) {
	t.Helper()
	var got []delivery
	n := NewEmailNotifier(EmailConfig{
		Host:     "smtp.example.com",
		Port:     465,
		From:     "reports@example.com",
		FromName: "Index Reports",
		To:       []string{"default@example.com"},
	}, zerolog.Nop())
	n.now = func() time.Time { return time.Date(2024, 3, 8, 20, 0, 0, 0, time.UTC) }
	n.deliver = func(ctx context.Context, from string, to []string, msg []byte) error {
		if fail[to[0]] {
			return errors.New("mailbox unavailable")
		}
		got = append(got, delivery{from: from, to: to, body: msg})
		return nil
	}
	return n, &got
}

func TestEmailComposesAlternativeParts(t *testing.T) {
	n, got := testEmailNotifier(t, nil)
	msg := Message{
		Subject: "CSI 300 Daily Report 2024-03-08: -1.90%",
		Text:    "Close: 103.00 CNY",
		HTML:    "<p>Close: 103.00 CNY</p>",
	}

	require.NoError(t, n.Send(context.Background(), msg, []string{"a@example.com"}))
	require.Len(t, *got, 1)
	d := (*got)[0]
	assert.Equal(t, "reports@example.com", d.from)
	assert.Equal(t, []string{"a@example.com"}, d.to)

	r, err := mail.CreateReader(bytes.NewReader(d.body))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, msg.Subject, subject)

	from, err := r.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "Index Reports", from[0].Name)

	parts := map[string]string{}
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, _, err := h.ContentType()
		require.NoError(t, err)
		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		parts[ct] = string(body)
	}
	assert.Equal(t, msg.Text, parts["text/plain"])
	assert.Equal(t, msg.HTML, parts["text/html"])
}

func TestEmailSendsToEveryRecipient(t *testing.T) {
	n, got := testEmailNotifier(t, map[string]bool{"b@example.com": true})

	err := n.Send(context.Background(), Message{Subject: "s", Text: "t"},
		[]string{"a@example.com", "b@example.com", "c@example.com"})
	require.Error(t, err)

	var ne *NotifyError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "email", ne.Channel)
	assert.Contains(t, err.Error(), "b@example.com")

	require.Len(t, *got, 2)
	assert.Equal(t, []string{"a@example.com"}, (*got)[0].to)
	assert.Equal(t, []string{"c@example.com"}, (*got)[1].to)
}

func TestEmailDefaultsAndConfig(t *testing.T) {
	n, got := testEmailNotifier(t, nil)
	require.NoError(t, n.Send(context.Background(), Message{Text: "t"}, nil))
	require.Len(t, *got, 1)
	assert.Equal(t, []string{"default@example.com"}, (*got)[0].to)

	bare := NewEmailNotifier(EmailConfig{}, zerolog.Nop())
	err := bare.Send(context.Background(), Message{Text: "t"}, []string{"a@example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 587, bare.config.Port)
}

func TestTelegramSend(t *testing.T) {
	var payload map[string]string
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	n := NewTelegramNotifier("tok", "@reports", zerolog.Nop())
	n.baseURL = ts.URL

	err := n.Send(context.Background(), Message{Subject: "Weekly", Text: "body"}, []string{"ignored@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "@reports", payload["chat_id"])
	assert.Equal(t, "Weekly\n\nbody", payload["text"])
}

func TestTelegramErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer ts.Close()

	n := NewTelegramNotifier("tok", "1", zerolog.Nop())
	n.baseURL = ts.URL
	err := n.Send(context.Background(), Message{Text: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")

	err = NewTelegramNotifier("", "", zerolog.Nop()).Send(context.Background(), Message{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("abcdefghi\n", 5) // 50 runes
	chunks := splitMessage(text, 20)
	require.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 20)
	}

	long := splitMessage(strings.Repeat("x", 45), 20)
	assert.Equal(t, []int{20, 20, 5}, []int{len(long[0]), len(long[1]), len(long[2])})

	assert.Equal(t, []string{"short"}, splitMessage("short", 20))
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(context.Context, Message, []string) error {
	s.calls++
	return s.err
}

func TestMultiAttemptsAllChannels(t *testing.T) {
	a := &stubNotifier{name: "a", err: errors.New("down")}
	b := &stubNotifier{name: "b"}
	c := &stubNotifier{name: "c", err: &NotifyError{Channel: "c", Err: ErrNotConfigured}}

	err := Multi{a, b, c}.Send(context.Background(), Message{}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
	assert.Contains(t, err.Error(), "a: down")
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.NoError(t, Multi{b}.Send(context.Background(), Message{}, nil))
	assert.ErrorIs(t, Multi{}.Send(context.Background(), Message{}, nil), ErrNotConfigured)
}
