package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// BlobStorage is a mock type for the model.BlobStorage type.
type BlobStorage struct {
	mock.Mock
}

func (_m *BlobStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	ret := _m.Called(ctx, key, reader, size)

	if rf, ok := ret.Get(0).(func(context.Context, string, io.Reader, int64) error); ok {
		return rf(ctx, key, reader, size)
	}
	return ret.Error(0)
}

func (_m *BlobStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	ret := _m.Called(ctx, key)

	if rf, ok := ret.Get(0).(func(context.Context, string) (io.ReadCloser, error)); ok {
		return rf(ctx, key)
	}

	var r0 io.ReadCloser
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(io.ReadCloser)
	}
	return r0, ret.Error(1)
}

func (_m *BlobStorage) Delete(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)

	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return rf(ctx, key)
	}
	return ret.Error(0)
}

// NewBlobStorage creates a new instance of BlobStorage. It also registers a cleanup function to assert the mocks expectations.
func NewBlobStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *BlobStorage {
	m := &BlobStorage{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
