package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromContext(t *testing.T) {
	l := zap.NewNop().Sugar()
	ctx := WithContext(context.Background(), l)
	require.Same(t, l, FromContext(ctx))

	require.NotNil(t, FromContext(context.Background()))
}

func TestNew_DevAndProd(t *testing.T) {
	t.Setenv(EnvVar, "dev")
	require.NotNil(t, New())

	t.Setenv(EnvVar, "prod")
	require.NotNil(t, New())
}
