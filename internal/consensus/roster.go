package consensus

import (
	"fmt"

	"bidflow/internal/analyzer"
	"bidflow/internal/config"
	"bidflow/internal/provider"
)

// MembersFromRoster builds one analyzer per roster entry. Backends must be
// registered (blank-import the provider packages) before calling it.
func MembersFromRoster(vendors *config.ProvidersConfig, roster []config.RosterEntry, maxTokens int) ([]ModelAnalyzer, error) {
	members := make([]ModelAnalyzer, 0, len(roster))
	for _, entry := range roster {
		bound, err := provider.ForRosterEntry(vendors, entry)
		if err != nil {
			return nil, fmt.Errorf("building consensus roster: %w", err)
		}
		opts := []analyzer.Option{
			analyzer.WithModelID(entry.ID),
			analyzer.WithVendor(entry.Provider),
			analyzer.WithMaxTokens(maxTokens),
		}
		if entry.Temperature != nil {
			opts = append(opts, analyzer.WithTemperature(*entry.Temperature))
		}
		members = append(members, analyzer.New(bound, entry.Model, opts...))
	}
	return members, nil
}
