package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "::not a url::")
	require.ErrorContains(t, err, "parse database url")
}
