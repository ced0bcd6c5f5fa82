package consensus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/config"
	"bidflow/internal/consensus"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider"
)

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Generate(_ context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	return &port.GenerateResponse{
		Content: `{"items": [{"name": "Footing", "category": "concrete", "quantity": 12, "unit": "CY", "confidence": 0.9}], "confidence": 0.9}`,
		Model:   req.Model,
	}, nil
}

func TestMembersFromRoster(t *testing.T) {
	for _, name := range []string{"claude", "openai", "gemini"} {
		provider.RegisterProvider(name, func(config.ProviderConfig) (port.ModelProvider, error) {
			return echoProvider{}, nil
		})
	}

	members, err := consensus.MembersFromRoster(&config.ProvidersConfig{}, config.DefaultRoster(), 2048)
	require.NoError(t, err)
	require.Len(t, members, 5)
	assert.Equal(t, "claude-sonnet", members[0].ModelID())
	assert.Equal(t, "claude", members[0].Vendor())
	assert.Equal(t, "gemini-2.0-flash", members[4].Model())

	engine, err := consensus.NewEngine(members, consensus.DefaultConfig())
	require.NoError(t, err)
	result, err := engine.AnalyzeWithConsensus(context.Background(),
		[]domain.PlanImage{{URL: "https://plans.example.com/s1.png"}},
		domain.AnalysisOptions{TaskType: domain.TaskTakeoff})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 5, result.Items[0].ConsensusCount)
	assert.Equal(t, domain.UnitCY, result.Items[0].Unit)
	assert.InDelta(t, 12, *result.Items[0].Quantity, 1e-9)
}

func TestMembersFromRoster_UnknownVendor(t *testing.T) {
	_, err := consensus.MembersFromRoster(&config.ProvidersConfig{}, []config.RosterEntry{{ID: "x", Provider: "mistral", Model: "m"}}, 0)
	assert.True(t, errors.Is(err, domain.ErrUnknownProvider))
}
