package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medsim-server/internal/backend"
)

// MockBackendClient is a mock type for the backend.Client type
type MockBackendClient struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockBackendClient) Generate(ctx context.Context, req backend.CallRequest) (*backend.CallResponse, error) {
	ret := _m.Called(ctx, req)

	var r0 *backend.CallResponse
	if rf, ok := ret.Get(0).(func(context.Context, backend.CallRequest) *backend.CallResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*backend.CallResponse)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, backend.CallRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockBackendClient creates a new instance of MockBackendClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockBackendClient(t interface {
	mock.TestingT
	Helper()
}) *MockBackendClient {
	m := &MockBackendClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ backend.Client = (*MockBackendClient)(nil)
