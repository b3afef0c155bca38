package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

// TokenManager is a mock type for the model.TokenManager type.
type TokenManager struct {
	mock.Mock
}

func (_m *TokenManager) GenerateAccessToken(principal model.Principal) (string, error) {
	ret := _m.Called(principal)
	return ret.String(0), ret.Error(1)
}

func (_m *TokenManager) ParseAccessToken(token string) (model.Principal, error) {
	ret := _m.Called(token)

	var r0 model.Principal
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.Principal)
	}
	return r0, ret.Error(1)
}

// NewTokenManager creates a new instance of TokenManager. It also registers a cleanup function to assert the mocks expectations.
func NewTokenManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenManager {
	m := &TokenManager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
