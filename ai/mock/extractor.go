package mock

import (
	"context"

	"github.com/xynenyx/fundwire/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, returns the Result field.
	ExtractEntitiesFunc func(ctx context.Context, text string) (*ai.ExtractedEntities, error)

	// Result is returned by ExtractEntities when no custom function is set.
	// If nil, an empty result is returned.
	Result *ai.ExtractedEntities

	callCount int
}

// NewMockEntityExtractor creates a mock entity extractor with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractEntities returns the configured result or delegates to the custom function.
func (m *MockEntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.ExtractedEntities, error) {
	m.callCount++

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &ai.ExtractedEntities{}, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom behavior.
func (m *MockEntityExtractor) Reset() {
	m.callCount = 0
	m.ExtractEntitiesFunc = nil
	m.Result = nil
}
