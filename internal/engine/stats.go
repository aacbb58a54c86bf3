package engine

import (
	"database/sql"
	"errors"

	"github.com/cadenzahq/cadenza/pkg/cadenza/models"
)

// Stats returns the aggregator counters for one automation. Counters are
// maintained incrementally on trigger and completion; they are eventually
// consistent with the execution table, not derived from it. Counters are
// read from the store, not the definition cache, so concurrent triggers on
// other instances are visible.
func (m *Manager) Stats(id string) (*models.AutomationStatsResponse, error) {
	def, err := m.Definitions.automations.FindLatest(id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAutomationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.AutomationStatsResponse{
		ID:                   def.ID,
		Triggered:            def.Triggered,
		Completed:            def.Completed,
		AvgCompletionMinutes: def.AvgCompletionMinutes,
		ConversionRate:       def.ConversionRate(),
	}, nil
}
