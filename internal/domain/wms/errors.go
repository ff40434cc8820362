package wms

import (
	"errors"

	"github.com/tenantapp/backend/internal/domain/shared"
)

var (
	// ErrInvalidItem is returned for stock items without a SKU or quantity.
	ErrInvalidItem = shared.NewDomainError("INVALID_INPUT", InvalidItemMessage)

	// ErrWmsUnavailable wraps transport failures talking to the WMS API.
	ErrWmsUnavailable = errors.New("wms api unavailable")

	// ErrInvalidResponse is returned when a 2xx WMS body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid wms response")

	// ErrSyncRunNotFound is returned when a sync run lookup misses.
	ErrSyncRunNotFound = shared.NewDomainError("NOT_FOUND", "Sync run not found")

	// ErrSyncRunFinished is returned when a finished run is mutated again.
	ErrSyncRunFinished = shared.NewDomainError("INVALID_STATE", "Sync run already finished")

	// ErrSyncAlreadyRunning is returned when a stock sync is already active.
	ErrSyncAlreadyRunning = shared.NewDomainError("SYNC_IN_PROGRESS", "A stock sync is already running")
)
