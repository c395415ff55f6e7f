package util_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github/chapool/go-withdrawer/internal/util"
)

func TestLogLevelFromString(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, util.LogLevelFromString("info"))
	assert.Equal(t, zerolog.WarnLevel, util.LogLevelFromString("warn"))
	assert.Equal(t, zerolog.DebugLevel, util.LogLevelFromString("definitely-not-a-level"))
	assert.Equal(t, zerolog.DebugLevel, util.LogLevelFromString(""))
}

func TestLogFromContextFallsBackToGlobal(t *testing.T) {
	l := util.LogFromContext(context.Background())
	assert.Equal(t, &log.Logger, l)

	ctxLogger := zerolog.Nop().Level(zerolog.InfoLevel)
	ctx := ctxLogger.WithContext(context.Background())
	assert.Equal(t, zerolog.InfoLevel, util.LogFromContext(ctx).GetLevel())
}
