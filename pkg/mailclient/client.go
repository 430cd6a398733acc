package mailclient

import (
	"context"
	"io"
)

// Client is an interface to send client
type Client interface {
	io.Closer
	SendEmails(ctx context.Context, parsedEmails []EmailSingle) (report Report)
}

// EmailSingle is parsed and ready to send email.
type EmailSingle struct {
	TrackingID string `json:"tracking_id" validate:"required"`
	SenderAddr string `json:"sender_addr" validate:"required,email"`

	// Recipients is only used as the list of email recipient, but we'll send it as single email using To address.
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Subject    string   `json:"subject" validate:"required"`
	Body       string   `json:"body" validate:"required"`
}

type RecvReport struct {
	To        string
	Error     error
	EmailData EmailSingle
}

type Report struct {
	ClientError error
	RecvReports []RecvReport
}

// Err returns the first error of the report, nil when every recipient got the mail.
func (r Report) Err() error {
	if r.ClientError != nil {
		return r.ClientError
	}

	for _, recv := range r.RecvReports {
		if recv.Error != nil {
			return recv.Error
		}
	}

	return nil
}
