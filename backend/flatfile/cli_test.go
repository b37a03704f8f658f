package flatfile_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imanconnect/internal/testutil"
)

// =============================================================================
// Daily flat-file CLI tests: prayer mark/today/summary, quran pages/goal, tasbih
// =============================================================================

func TestPrayerMarkWritesTodayLineCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	out := cli.MustExecute("prayer", "mark", "fajr", "on-time")
	testutil.AssertContains(t, out, "fajr marked ON_TIME (1/5 today)")
	testutil.AssertResultCode(t, out, "ACTION_COMPLETED")

	cli.MustExecute("prayer", "mark", "zuhr", "late")

	data, err := os.ReadFile(filepath.Join(cli.DataDir(), "salah_data.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		"2025-03-10,Fajr:ON_TIME,Dhuhr:LATE,Asr:NOT_RECORDED,Maghrib:NOT_RECORDED,Isha:NOT_RECORDED",
		strings.TrimSpace(string(data)))
}

func TestPrayerMarkRejectsUnknownNamesCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	_, stderr := cli.ExecuteAndFail("prayer", "mark", "tahajjud", "on-time")
	testutil.AssertContains(t, stderr, "tahajjud")

	_, stderr = cli.ExecuteAndFail("prayer", "mark", "fajr", "early")
	testutil.AssertContains(t, stderr, "early")
}

func TestPrayerTodayJSONCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)
	cli.MustExecute("prayer", "mark", "isha", "missed")

	out := cli.MustExecute("--json", "prayer", "today")

	var got struct {
		Date      string            `json:"date"`
		Prayers   map[string]string `json:"prayers"`
		Completed int               `json:"completed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2025-03-10", got.Date)
	assert.Equal(t, "MISSED", got.Prayers["Isha"])
	assert.Equal(t, "NOT_RECORDED", got.Prayers["Fajr"])
	assert.Equal(t, 0, got.Completed)
}

func TestPrayerSummaryCountsAcrossDaysCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	cli.SetNow(testutil.FixedNow.AddDate(0, 0, -10))
	cli.MustExecute("prayer", "mark", "fajr", "missed")
	cli.SetNow(testutil.FixedNow)
	cli.MustExecute("prayer", "mark", "fajr", "on-time")

	out := cli.MustExecute("--json", "prayer", "summary")

	var got map[string]map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got["Today"]["OnTime"])
	assert.Equal(t, 0, got["Week"]["Missed"])
	assert.Equal(t, 1, got["Month"]["Missed"])
}

func TestQuranPagesAndGoalCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	out := cli.MustExecute("quran", "pages")
	testutil.AssertContains(t, out, "0/10 pages")
	testutil.AssertResultCode(t, out, "INFO_ONLY")

	cli.MustExecute("quran", "pages", "4")
	out = cli.MustExecute("quran", "goal", "5")
	testutil.AssertContains(t, out, "4/5 pages")
	testutil.AssertNotContains(t, out, "Daily goal reached")

	out = cli.MustExecute("quran", "pages", "1")
	testutil.AssertContains(t, out, "5/5 pages")
	testutil.AssertContains(t, out, "Daily goal reached")

	data, err := os.ReadFile(filepath.Join(cli.DataDir(), "quran_data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10,5,5", strings.TrimSpace(string(data)))
}

func TestQuranPagesRejectsBadInputCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	cli.ExecuteAndFail("quran", "pages", "many")
	cli.ExecuteAndFail("quran", "pages", "-3")
	cli.ExecuteAndFail("quran", "goal", "0")
}

func TestTasbihCountMilestoneCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	var out string
	for i := 0; i < 33; i++ {
		out = cli.MustExecute("tasbih", "count")
	}
	testutil.AssertContains(t, out, "Count 33  Cycles 0  Total 33")
	testutil.AssertContains(t, out, "33 reached")

	out = cli.MustExecute("tasbih", "count", "--cycle")
	testutil.AssertContains(t, out, "Count 0  Cycles 1  Total 33")

	out = cli.MustExecute("tasbih", "count")
	testutil.AssertNotContains(t, out, "reached")

	out = cli.MustExecute("tasbih", "count", "--reset")
	testutil.AssertContains(t, out, "Count 0  Cycles 1  Total 34")

	data, err := os.ReadFile(filepath.Join(cli.DataDir(), "tasbih_data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10,0,1,34", strings.TrimSpace(string(data)))
}

func TestFlatFilesKeepOneLinePerDayCLI(t *testing.T) {
	cli := testutil.NewCLITest(t)

	cli.SetNow(testutil.FixedNow.AddDate(0, 0, -1))
	cli.MustExecute("quran", "pages", "2")
	cli.SetNow(testutil.FixedNow)
	cli.MustExecute("quran", "pages", "3")
	cli.MustExecute("quran", "pages", "1")

	data, err := os.ReadFile(filepath.Join(cli.DataDir(), "quran_data.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2025-03-09,2,10", lines[0])
	assert.Equal(t, "2025-03-10,4,10", lines[1])
}
