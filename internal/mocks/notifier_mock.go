package mocks

import (
	"github.com/stretchr/testify/mock"

	"medsim-server/internal/model"
	"medsim-server/internal/service"
)

// MockNotifier is a mock type for the service.Notifier type
type MockNotifier struct {
	mock.Mock
}

// Publish provides a mock function with given fields: event
func (_m *MockNotifier) Publish(event model.UpdateEvent) {
	_m.Called(event)
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.Notifier = (*MockNotifier)(nil)
