package telemetry

import (
	"context"

	"github.com/bulwise/bulwise/provider"
)

// InstrumentProvider counts every call issued to the underlying provider,
// including gateway retries. With nil metrics the provider is returned
// unwrapped.
func InstrumentProvider(p provider.Provider, m *Metrics) provider.Provider {
	if m == nil {
		return p
	}
	return &instrumentedProvider{p: p, m: m}
}

type instrumentedProvider struct {
	p provider.Provider
	m *Metrics
}

func (ip *instrumentedProvider) Generate(ctx context.Context, req provider.Request) (provider.Result, error) {
	ip.m.ObserveProviderAttempt()
	return ip.p.Generate(ctx, req)
}

func (ip *instrumentedProvider) ModelInfo(model string) (provider.ModelInfo, error) {
	return ip.p.ModelInfo(model)
}

func (ip *instrumentedProvider) Models() []string { return ip.p.Models() }
