// Package pushclient sends push notifications to an FCM topic through the legacy HTTP API.
package pushclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goFCM "github.com/appleboy/go-fcm"
	"github.com/yusufsyaifudin/katalog/pkg/httplog"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
)

type Client interface {
	SendTopic(ctx context.Context, topic string, n Notification) (Result, error)
}

type Notification struct {
	Title string            `validate:"required"`
	Body  string            `validate:"required"`
	Data  map[string]string `validate:"-"`
}

type Result struct {
	MessageID int64
}

type Config struct {
	ServerKey string `validate:"required"`

	// HTTPClient defaults to a client logging every call via httplog.
	HTTPClient *http.Client `validate:"-"`
}

type FCM struct {
	client *goFCM.Client
}

var _ Client = (*FCM)(nil)

func NewFCM(cfg Config) (*FCM, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: httplog.New(http.DefaultTransport, "Authorization"),
		}
	}

	client, err := goFCM.NewClient(cfg.ServerKey, goFCM.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("fcm client error: %w", err)
	}

	return &FCM{client: client}, nil
}

func (f *FCM) SendTopic(ctx context.Context, topic string, n Notification) (Result, error) {
	if err := validator.Validate(n); err != nil {
		return Result{}, fmt.Errorf("validation error: %w", err)
	}

	topic = strings.TrimPrefix(topic, "/topics/")
	if topic == "" {
		return Result{}, fmt.Errorf("validation error: empty topic")
	}

	data := make(map[string]interface{}, len(n.Data))
	for k, v := range n.Data {
		data[k] = v
	}

	msg := &goFCM.Message{
		To: "/topics/" + topic,
		Notification: &goFCM.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
	}

	resp, err := f.client.SendWithContext(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("response fcm error: %w", err)
	}

	if resp.Error != nil {
		return Result{}, fmt.Errorf("fcm rejected topic message: %w", resp.Error)
	}

	return Result{MessageID: resp.MessageID}, nil
}
