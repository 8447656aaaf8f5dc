// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikser/dikser/pkg/errutil"
)

var fastConnect = ConnectOptions{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWaitForDatabase(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectPing()

		require.NoError(t, waitForDatabase(context.Background(), mock, fastConnect, discardLogger()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		for range 3 {
			mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		}

		err = waitForDatabase(context.Background(), mock, fastConnect, discardLogger())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
		errutil.AssertErrorContext(t, err, "attempts", 3)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		slow := ConnectOptions{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		err = waitForDatabase(ctx, mock, slow, discardLogger())
		require.Error(t, err)
	})
}

func TestOpenPool_InvalidURL(t *testing.T) {
	_, err := OpenPool(context.Background(), "postgres://dikser@localhost:notaport/dikser", fastConnect, discardLogger())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
