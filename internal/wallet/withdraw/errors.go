package withdraw

import (
	"github.com/pkg/errors"
	"github/chapool/go-withdrawer/internal/wallet/hotwallet"
)

var (
	ErrQueueEmpty     = errors.New("withdrawal queue is empty")
	ErrTokenConflict  = errors.New("idempotency token is already assigned")
	ErrHeadMismatch   = errors.New("request is not the queue head")
	ErrNotFound       = errors.New("withdrawal request not found")
	ErrInvalidRequest = errors.New("invalid withdrawal request")
	ErrUnknownAsset   = hotwallet.ErrUnknownAsset
)
