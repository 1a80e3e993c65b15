package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medsim-server/internal/model"
	"medsim-server/internal/service"
)

// MockGenerator is a mock type for the service.Generator type
type MockGenerator struct {
	mock.Mock
}

// Simulation provides a mock function with given fields: ctx, req
func (_m *MockGenerator) Simulation(ctx context.Context, req model.GenerationRequest) (*model.SimulationScenario, error) {
	ret := _m.Called(ctx, req)

	var r0 *model.SimulationScenario
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.SimulationScenario)
	}
	return r0, ret.Error(1)
}

// Protocol provides a mock function with given fields: ctx, req
func (_m *MockGenerator) Protocol(ctx context.Context, req model.GenerationRequest) (*model.ProtocolPlan, error) {
	ret := _m.Called(ctx, req)

	var r0 *model.ProtocolPlan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ProtocolPlan)
	}
	return r0, ret.Error(1)
}

// Quiz provides a mock function with given fields: ctx, req
func (_m *MockGenerator) Quiz(ctx context.Context, req model.GenerationRequest) (*model.QuizSet, error) {
	ret := _m.Called(ctx, req)

	var r0 *model.QuizSet
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.QuizSet)
	}
	return r0, ret.Error(1)
}

// Gallery provides a mock function with given fields: ctx, req
func (_m *MockGenerator) Gallery(ctx context.Context, req model.GenerationRequest) (*model.GalleryResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *model.GalleryResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.GalleryResult)
	}
	return r0, ret.Error(1)
}

// Image provides a mock function with given fields: ctx, prompt, subtype
func (_m *MockGenerator) Image(ctx context.Context, prompt string, subtype model.ImageSubtype) (string, error) {
	ret := _m.Called(ctx, prompt, subtype)
	return ret.String(0), ret.Error(1)
}

// Analyze provides a mock function with given fields: ctx, data, mimeType, language
func (_m *MockGenerator) Analyze(ctx context.Context, data []byte, mimeType string, language string) (*model.AnalysisResult, error) {
	ret := _m.Called(ctx, data, mimeType, language)

	var r0 *model.AnalysisResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.AnalysisResult)
	}
	return r0, ret.Error(1)
}

// NewMockGenerator creates a new instance of MockGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.Generator = (*MockGenerator)(nil)
