package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Notifier is a mock type for the model.Notifier type.
type Notifier struct {
	mock.Mock
}

func (_m *Notifier) NotifyOwner(ctx context.Context, ownerID uuid.UUID, notice model.Notice) error {
	ret := _m.Called(ctx, ownerID, notice)

	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID, model.Notice) error); ok {
		return rf(ctx, ownerID, notice)
	}
	return ret.Error(0)
}

func (_m *Notifier) NotifyHeir(ctx context.Context, heir model.Heir, notice model.Notice) error {
	ret := _m.Called(ctx, heir, notice)

	if rf, ok := ret.Get(0).(func(context.Context, model.Heir, model.Notice) error); ok {
		return rf(ctx, heir, notice)
	}
	return ret.Error(0)
}

// NewNotifier creates a new instance of Notifier. It also registers a cleanup function to assert the mocks expectations.
func NewNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *Notifier {
	m := &Notifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
