package testutil

import (
	"context"
	"testing"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/stretchr/testify/require"
)

// NewTracedContext returns a context carrying a transaction of a New Relic
// application that never reports, so traced code paths run as they do when
// metrics are enabled.
func NewTracedContext(t *testing.T) context.Context {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("wallet-tools-test"),
		newrelic.ConfigEnabled(false),
	)
	require.NoError(t, err)

	txn := app.StartTransaction(t.Name())
	t.Cleanup(func() {
		txn.End()
		app.Shutdown(0)
	})

	return newrelic.NewContext(context.Background(), txn)
}
