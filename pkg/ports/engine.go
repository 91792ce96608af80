package ports

import (
	"context"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
)

// ProtocolEngine is the surface consumed by the driving adapters (MCP, HTTP, CLI).
type ProtocolEngine interface {
	Detect(ctx context.Context, input string, c domain.Context) []domain.Protocol
	Start(ctx context.Context, protocolID string, c domain.Context) (*domain.Execution, error)
	Next(ctx context.Context, activeID string) (*domain.NextAction, error)
	CompleteStep(ctx context.Context, activeID, stepID string, result any) error
	DisplayProgress(ctx context.Context, activeID string) (string, error)
	ListProtocols(ctx context.Context, category string) []domain.ProtocolSummary
	ListActive(ctx context.Context) []domain.ActiveSummary
	Finish(ctx context.Context, activeID string, success bool) error
	Statistics(ctx context.Context) (domain.Statistics, error)
	Cleanup(ctx context.Context, maxAge time.Duration) ([]string, error)
}
