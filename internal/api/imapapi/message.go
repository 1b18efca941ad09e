package imapapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/evaldash/internal/api"
)

// Notification headers.
const (
	HeaderType        = "X-Notification-Type"
	HeaderSchoolID    = "X-School-Id"
	HeaderSchoolName  = "X-School-Name"
	HeaderStudentName = "X-Student-Name"
	HeaderIcon        = "X-Notification-Icon"
)

var errNoType = errors.New("missing " + HeaderType + " header")

// parseMessage builds a notification from a raw RFC 5322 message. ID and
// Read are left for the caller, which knows the UID and flags.
func parseMessage(raw []byte) (api.RawNotification, error) {
	if raw == nil {
		return api.RawNotification{}, errors.New("empty message body")
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return api.RawNotification{}, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	n := api.RawNotification{
		Type:        strings.TrimSpace(h.Get(HeaderType)),
		SchoolID:    strings.TrimSpace(h.Get(HeaderSchoolID)),
		SchoolName:  textHeader(h, HeaderSchoolName),
		StudentName: textHeader(h, HeaderStudentName),
		Icon:        strings.TrimSpace(h.Get(HeaderIcon)),
	}
	if n.Type == "" {
		return api.RawNotification{}, errNoType
	}

	if subject, err := h.Subject(); err == nil {
		n.Title = subject
	}
	if date, err := h.Date(); err == nil {
		n.Timestamp = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		n.Description = strings.TrimSpace(string(body))
		break
	}

	return n, nil
}

// textHeader decodes RFC 2047 encoded words, which is how non-ASCII school
// and student names arrive.
func textHeader(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return strings.TrimSpace(h.Get(key))
	}
	return strings.TrimSpace(v)
}
