package livedata

import (
	"testing"

	"nexonsite/testutil"
)

func TestLiveLayerStaysBelowService(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.ImportsUnder("internal/core", "internal/adapters", "internal/infra", "cmd"),
		"watchers depend only on the domain Subscriber")
}
