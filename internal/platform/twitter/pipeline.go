package twitter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/httpx"
	"pulseboard/internal/storage"
)

// Pipeline pairs the social client with its processor for the orchestrator.
type Pipeline struct {
	client    *Client
	processor *Processor
}

func NewPipeline(creds credentials.Credentials, store storage.Store, httpCfg httpx.Config, logger *logrus.Logger) (*Pipeline, error) {
	client, err := NewClient(creds, httpCfg, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		client:    client,
		processor: NewProcessor(store, logger),
	}, nil
}

func (p *Pipeline) Platform() string { return Platform }

func (p *Pipeline) Validate(ctx context.Context) bool {
	return p.client.ValidateCredentials(ctx)
}

func (p *Pipeline) Process(ctx context.Context, start, end time.Time) error {
	return p.processor.Process(ctx, p.client, start, end)
}
