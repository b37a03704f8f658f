package notification_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imanconnect/internal/testutil"
)

func TestNotificationTestWritesLogCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	out := cli.MustExecute("notification", "test")
	testutil.AssertContains(t, out, "Test notification sent to 1 channel(s)")

	out = cli.MustExecute("notification", "log")
	testutil.AssertContains(t, out, "[TEST]")
	testutil.AssertContains(t, out, "Test notification")
	testutil.AssertResultCode(t, out, "INFO_ONLY")

	out = cli.MustExecute("--json", "notification", "log")
	var entries []string
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 1)

	cli.MustExecute("notification", "log", "--clear")
	out = cli.MustExecute("notification", "log")
	testutil.AssertContains(t, out, "No notifications logged")
}

func TestNotificationLogEmptyJSONCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	out := cli.MustExecute("--json", "notification", "log")
	assert.JSONEq(t, "[]", out)
}
