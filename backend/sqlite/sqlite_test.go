package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"imanconnect/backend"
	"imanconnect/internal/dbpool"
)

// mustNewBackend creates a file-backed store with the schema applied and
// registers cleanup. Each pooled connection to ":memory:" would see its own
// empty database, so tests always use a temp file.
func mustNewBackend(t *testing.T, opts ...Option) (*Backend, context.Context) {
	t.Helper()
	ctx := context.Background()
	pool, err := dbpool.Open(ctx, dbpool.Config{
		Path:         filepath.Join(t.TempDir(), "imanconnect.db"),
		MaxOpenConns: 4,
	}, dbpool.WithInitializer(EnsureSchema))
	if err != nil {
		t.Fatalf("dbpool.Open error: %v", err)
	}
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	return New(pool, opts...), ctx
}

// helper to create an account and fail on error
func mustCreateAccount(t *testing.T, b *Backend, ctx context.Context, username, gender string) *backend.Account {
	t.Helper()
	a := &backend.Account{
		FullName:     "Member " + username,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hash-" + username,
		Gender:       gender,
	}
	id, err := b.CreateAccount(ctx, a)
	if err != nil {
		t.Fatalf("CreateAccount(%s) error: %v", username, err)
	}
	a.ID = id
	return a
}

// helper to create a scholar and fail on error
func mustCreateScholar(t *testing.T, b *Backend, ctx context.Context, username string) *backend.Scholar {
	t.Helper()
	s := &backend.Scholar{
		FullName:       "Shaykh " + username,
		Email:          username + "@scholars.example.com",
		Username:       username,
		PasswordHash:   "hash-" + username,
		Specialization: "Fiqh",
		Gender:         "Male",
	}
	id, err := b.CreateScholar(ctx, s)
	if err != nil {
		t.Fatalf("CreateScholar(%s) error: %v", username, err)
	}
	s.ID = id
	return s
}

// =============================================================================
// Accounts
// =============================================================================

// TestCreateAndGetAccount verifies an account round-trips through the store
func TestCreateAndGetAccount(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")

	got, err := b.GetAccountByUsername(ctx, "aisha")
	if err != nil {
		t.Fatalf("GetAccountByUsername error: %v", err)
	}
	if got.ID != a.ID || got.Email != "aisha@example.com" || got.Gender != "Female" {
		t.Errorf("got %+v, want id %d email aisha@example.com gender Female", got, a.ID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}

	byID, err := b.GetAccountByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccountByID error: %v", err)
	}
	if byID.Username != "aisha" {
		t.Errorf("GetAccountByID username = %q, want aisha", byID.Username)
	}
}

// TestGetAccountNotFound verifies missing accounts map to ErrNotFound
func TestGetAccountNotFound(t *testing.T) {
	b, ctx := mustNewBackend(t)

	_, err := b.GetAccountByUsername(ctx, "nobody")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestCreateAccountDuplicate verifies username and email are unique
func TestCreateAccountDuplicate(t *testing.T) {
	b, ctx := mustNewBackend(t)
	mustCreateAccount(t, b, ctx, "aisha", "Female")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"same username", "aisha", "other@example.com"},
		{"same email", "other", "aisha@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateAccount(ctx, &backend.Account{
				FullName: "Dup", Email: tt.email, Username: tt.username, PasswordHash: "x",
			})
			if !errors.Is(err, backend.ErrDuplicate) {
				t.Errorf("error = %v, want ErrDuplicate", err)
			}

			exists, err := b.AccountExists(ctx, tt.username, tt.email)
			if err != nil {
				t.Fatalf("AccountExists error: %v", err)
			}
			if !exists {
				t.Error("AccountExists = false, want true")
			}
		})
	}
}

// TestListAccountsByGender verifies gender filtering and contact exclusion
func TestListAccountsByGender(t *testing.T) {
	b, ctx := mustNewBackend(t)
	aisha := mustCreateAccount(t, b, ctx, "aisha", "Female")
	mustCreateAccount(t, b, ctx, "maryam", "Female")
	mustCreateAccount(t, b, ctx, "yusuf", "Male")

	all, err := b.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListAccounts len = %d, want 3", len(all))
	}

	women, err := b.ListAccountsByGender(ctx, "Female")
	if err != nil {
		t.Fatalf("ListAccountsByGender error: %v", err)
	}
	if len(women) != 2 {
		t.Errorf("ListAccountsByGender(Female) len = %d, want 2", len(women))
	}

	contacts, err := b.ListMessagingContacts(ctx, aisha.ID, "Female")
	if err != nil {
		t.Fatalf("ListMessagingContacts error: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Username != "maryam" {
		t.Errorf("contacts = %+v, want only maryam", contacts)
	}
}

// TestUpdateAccountFields verifies password and avatar updates
func TestUpdateAccountFields(t *testing.T) {
	b, ctx := mustNewBackend(t)
	mustCreateAccount(t, b, ctx, "aisha", "Female")

	if err := b.UpdatePasswordHash(ctx, "aisha", "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash error: %v", err)
	}
	if err := b.UpdateProfilePicture(ctx, "aisha", "/pics/aisha.png"); err != nil {
		t.Fatalf("UpdateProfilePicture error: %v", err)
	}
	got, err := b.GetAccountByUsername(ctx, "aisha")
	if err != nil {
		t.Fatalf("GetAccountByUsername error: %v", err)
	}
	if got.PasswordHash != "new-hash" || got.ProfilePicturePath != "/pics/aisha.png" {
		t.Errorf("got hash %q path %q", got.PasswordHash, got.ProfilePicturePath)
	}

	if err := b.UpdatePasswordHash(ctx, "ghost", "x"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("UpdatePasswordHash(ghost) error = %v, want ErrNotFound", err)
	}
}

// =============================================================================
// Scholars
// =============================================================================

// TestCreateScholarCreatesAccount verifies scholar registration writes both rows
func TestCreateScholarCreatesAccount(t *testing.T) {
	b, ctx := mustNewBackend(t)
	s := mustCreateScholar(t, b, ctx, "ibrahim")

	if s.UserID == 0 {
		t.Fatal("scholar UserID not set")
	}
	acct, err := b.GetAccountByUsername(ctx, "ibrahim")
	if err != nil {
		t.Fatalf("member row missing: %v", err)
	}
	if acct.ID != s.UserID {
		t.Errorf("account id = %d, want %d", acct.ID, s.UserID)
	}

	got, err := b.GetScholarByUsername(ctx, "ibrahim")
	if err != nil {
		t.Fatalf("GetScholarByUsername error: %v", err)
	}
	if got.Specialization != "Fiqh" || got.IsOnline || got.LastSeen != nil {
		t.Errorf("got %+v, want offline Fiqh scholar with no last_seen", got)
	}
}

// TestCreateScholarRollsBack verifies a failed scholar insert leaves no member row
func TestCreateScholarRollsBack(t *testing.T) {
	b, ctx := mustNewBackend(t)

	// A scholar row with no member row: the member insert below succeeds and
	// the scholar insert then fails on the email.
	err := b.conn(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO scholars (full_name, email, username, password_hash, specialization)
			 VALUES ('Orphan', 'taken@example.com', 'orphan', 'x', 'Tafsir')`)
		return err
	})
	if err != nil {
		t.Fatalf("insert orphan scholar: %v", err)
	}

	_, err = b.CreateScholar(ctx, &backend.Scholar{
		FullName: "Copy", Email: "taken@example.com", Username: "copycat",
		PasswordHash: "x", Specialization: "Hadith",
	})
	if !errors.Is(err, backend.ErrDuplicate) {
		t.Fatalf("error = %v, want ErrDuplicate", err)
	}
	if _, err := b.GetAccountByUsername(ctx, "copycat"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("member row for copycat: err = %v, want ErrNotFound", err)
	}
}

// TestSetScholarOnline verifies presence updates
func TestSetScholarOnline(t *testing.T) {
	b, ctx := mustNewBackend(t)
	s := mustCreateScholar(t, b, ctx, "ibrahim")
	mustCreateScholar(t, b, ctx, "zakariya")

	at := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	if err := b.SetScholarOnline(ctx, s.ID, true, at); err != nil {
		t.Fatalf("SetScholarOnline error: %v", err)
	}
	got, err := b.GetScholarByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetScholarByID error: %v", err)
	}
	if !got.IsOnline || got.LastSeen == nil || !got.LastSeen.Equal(at) {
		t.Errorf("got online=%v last_seen=%v, want true %v", got.IsOnline, got.LastSeen, at)
	}

	list, err := b.ListScholars(ctx)
	if err != nil {
		t.Fatalf("ListScholars error: %v", err)
	}
	if len(list) != 2 || list[0].ID != s.ID {
		t.Errorf("ListScholars first = %+v, want online scholar first", list)
	}

	exists, err := b.ScholarExists(ctx, "nobody", "ibrahim@scholars.example.com")
	if err != nil || !exists {
		t.Errorf("ScholarExists = %v, %v, want true, nil", exists, err)
	}
}

// =============================================================================
// Trackers
// =============================================================================

// TestPrayerLogUpsert verifies a second save for the same day replaces the first
func TestPrayerLogUpsert(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")

	first := &backend.PrayerLogEntry{UserID: a.ID, Date: "2025-03-10", Fajr: true}
	if err := b.UpsertPrayerLog(ctx, first); err != nil {
		t.Fatalf("UpsertPrayerLog error: %v", err)
	}
	second := &backend.PrayerLogEntry{UserID: a.ID, Date: "2025-03-10", Fajr: true, Maghrib: true, Isha: true, Notes: "late isha"}
	if err := b.UpsertPrayerLog(ctx, second); err != nil {
		t.Fatalf("UpsertPrayerLog (again) error: %v", err)
	}

	got, err := b.GetPrayerLog(ctx, a.ID, "2025-03-10")
	if err != nil {
		t.Fatalf("GetPrayerLog error: %v", err)
	}
	if got.Completed() != 3 || got.Notes != "late isha" {
		t.Errorf("got completed=%d notes=%q, want 3 and late isha", got.Completed(), got.Notes)
	}

	logs, err := b.ListPrayerLogs(ctx, a.ID, "", "")
	if err != nil {
		t.Fatalf("ListPrayerLogs error: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("rows = %d, want 1", len(logs))
	}
}

// TestListPrayerLogsRange verifies date bounds are inclusive
func TestListPrayerLogsRange(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")

	for _, d := range []string{"2025-03-01", "2025-03-05", "2025-03-09", "2025-03-12"} {
		if err := b.UpsertPrayerLog(ctx, &backend.PrayerLogEntry{UserID: a.ID, Date: d, Fajr: true}); err != nil {
			t.Fatalf("UpsertPrayerLog(%s) error: %v", d, err)
		}
	}

	logs, err := b.ListPrayerLogs(ctx, a.ID, "2025-03-05", "2025-03-09")
	if err != nil {
		t.Fatalf("ListPrayerLogs error: %v", err)
	}
	if len(logs) != 2 || logs[0].Date != "2025-03-09" || logs[1].Date != "2025-03-05" {
		t.Errorf("logs = %+v, want 03-09 then 03-05", logs)
	}
}

// TestQuranAndDhikrLogs verifies append-only logs and newest-first ordering
func TestQuranAndDhikrLogs(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")

	for _, d := range []string{"2025-03-01", "2025-03-02", "2025-03-02"} {
		if _, err := b.AddQuranLog(ctx, &backend.QuranLogEntry{
			UserID: a.ID, Date: d, SurahNumber: 18, AyahFrom: 1, AyahTo: 10, DurationMinutes: 15,
		}); err != nil {
			t.Fatalf("AddQuranLog error: %v", err)
		}
	}
	quran, err := b.ListQuranLogs(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListQuranLogs error: %v", err)
	}
	if len(quran) != 3 || quran[0].Date != "2025-03-02" || quran[2].Date != "2025-03-01" {
		t.Errorf("quran logs = %+v", quran)
	}

	for i, d := range []string{"2025-03-01", "2025-03-03"} {
		if _, err := b.AddDhikrLog(ctx, &backend.DhikrLogEntry{
			UserID: a.ID, Date: d, DhikrName: "SubhanAllah", Count: 33, Cycles: i + 1, TotalCount: 33 * (i + 1),
		}); err != nil {
			t.Fatalf("AddDhikrLog error: %v", err)
		}
	}
	dhikr, err := b.ListDhikrLogs(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListDhikrLogs error: %v", err)
	}
	if len(dhikr) != 2 || dhikr[0].Date != "2025-03-03" || dhikr[0].TotalCount != 66 {
		t.Errorf("dhikr logs = %+v", dhikr)
	}
}

// TestFastingLogReplace verifies one row per (account, year, day) with the latest values
func TestFastingLogReplace(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")

	if err := b.SaveFastingLog(ctx, &backend.FastingLogEntry{UserID: a.ID, Year: 2025, DayNumber: 3, Fasted: false}); err != nil {
		t.Fatalf("SaveFastingLog error: %v", err)
	}
	if err := b.SaveFastingLog(ctx, &backend.FastingLogEntry{
		UserID: a.ID, Year: 2025, DayNumber: 3, Fasted: true, GoodDeeds: "charity", QuranPages: 12,
	}); err != nil {
		t.Fatalf("SaveFastingLog (again) error: %v", err)
	}
	if err := b.SaveFastingLog(ctx, &backend.FastingLogEntry{UserID: a.ID, Year: 2024, DayNumber: 3, Fasted: true}); err != nil {
		t.Fatalf("SaveFastingLog (2024) error: %v", err)
	}

	logs, err := b.ListFastingLogs(ctx, a.ID, 2025)
	if err != nil {
		t.Fatalf("ListFastingLogs error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("rows = %d, want 1", len(logs))
	}
	if !logs[0].Fasted || logs[0].GoodDeeds != "charity" || logs[0].QuranPages != 12 {
		t.Errorf("got %+v, want latest values", logs[0])
	}
}

// TestZikrUpsert verifies the (account, date, period) key and year filtering
func TestZikrUpsert(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")

	entries := []backend.ZikrLogEntry{
		{UserID: a.ID, Date: "2025-03-10", Period: backend.ZikrEvening, Completed: false},
		{UserID: a.ID, Date: "2025-03-10", Period: backend.ZikrMorning, Completed: true},
		{UserID: a.ID, Date: "2025-03-10", Period: backend.ZikrEvening, Completed: true, Notes: "after maghrib"},
		{UserID: a.ID, Date: "2024-12-31", Period: backend.ZikrMorning, Completed: true},
	}
	for i := range entries {
		if err := b.UpsertZikrLog(ctx, &entries[i]); err != nil {
			t.Fatalf("UpsertZikrLog error: %v", err)
		}
	}

	logs, err := b.ListZikrLogs(ctx, a.ID, 2025)
	if err != nil {
		t.Fatalf("ListZikrLogs error: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("rows = %d, want 2", len(logs))
	}
	if logs[0].Period != backend.ZikrMorning || logs[1].Period != backend.ZikrEvening {
		t.Errorf("order = %s, %s, want morning then evening", logs[0].Period, logs[1].Period)
	}
	if !logs[1].Completed || logs[1].Notes != "after maghrib" {
		t.Errorf("evening = %+v, want completed with note", logs[1])
	}
}

// =============================================================================
// Fatwa
// =============================================================================

// TestFatwaLifecycle verifies pending -> answered and the answer lookup
func TestFatwaLifecycle(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	s := mustCreateScholar(t, b, ctx, "ibrahim")

	qid, err := b.CreateQuestion(ctx, &backend.FatwaQuestion{
		UserID: a.ID, ScholarID: s.ID, Title: "Travel prayer", Text: "How do I shorten prayers?", Category: "Salah",
	})
	if err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}
	q, err := b.GetQuestion(ctx, qid)
	if err != nil {
		t.Fatalf("GetQuestion error: %v", err)
	}
	if q.Status != backend.StatusPending || q.Priority != backend.PriorityNormal {
		t.Errorf("new question status=%s priority=%s, want pending normal", q.Status, q.Priority)
	}
	if q.UserName != "Member aisha" || q.ScholarName != "Shaykh ibrahim" {
		t.Errorf("names = %q / %q", q.UserName, q.ScholarName)
	}

	if _, err := b.AnswerQuestion(ctx, &backend.FatwaAnswer{
		QuestionID: qid, ScholarID: s.ID, Text: "Pray two rak'ahs for the four.", IsPublic: true,
	}); err != nil {
		t.Fatalf("AnswerQuestion error: %v", err)
	}

	q, err = b.GetQuestion(ctx, qid)
	if err != nil {
		t.Fatalf("GetQuestion error: %v", err)
	}
	if q.Status != backend.StatusAnswered {
		t.Errorf("status = %s, want answered", q.Status)
	}
	ans, err := b.GetAnswer(ctx, qid)
	if err != nil {
		t.Fatalf("GetAnswer error: %v", err)
	}
	if ans.Text != "Pray two rak'ahs for the four." || ans.ScholarName != "Shaykh ibrahim" {
		t.Errorf("answer = %+v", ans)
	}

	_, err = b.AnswerQuestion(ctx, &backend.FatwaAnswer{QuestionID: qid, ScholarID: s.ID, Text: "again"})
	if !errors.Is(err, backend.ErrInvalidState) {
		t.Errorf("second answer error = %v, want ErrInvalidState", err)
	}
}

// TestAnswerWhileLockedIsBusy verifies a write blocked past busy_timeout by
// another writer reports ErrBusy.
func TestAnswerWhileLockedIsBusy(t *testing.T) {
	ctx := context.Background()
	pool, err := dbpool.Open(ctx, dbpool.Config{
		Path:         filepath.Join(t.TempDir(), "imanconnect.db"),
		MaxOpenConns: 2,
		BusyTimeout:  50 * time.Millisecond,
	}, dbpool.WithInitializer(EnsureSchema))
	if err != nil {
		t.Fatalf("dbpool.Open error: %v", err)
	}
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	b := New(pool)

	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	s := mustCreateScholar(t, b, ctx, "ibrahim")
	qid, err := b.CreateQuestion(ctx, &backend.FatwaQuestion{UserID: a.ID, ScholarID: s.ID, Title: "Zakat", Text: "x"})
	if err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}

	holder, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer pool.Release(holder)
	lock, err := holder.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTxx error: %v", err)
	}
	defer func() { _ = lock.Rollback() }()

	_, err = b.AnswerQuestion(ctx, &backend.FatwaAnswer{QuestionID: qid, ScholarID: s.ID, Text: "Pay it yearly."})
	if !errors.Is(err, backend.ErrBusy) {
		t.Errorf("AnswerQuestion error = %v, want ErrBusy", err)
	}
}

// TestAnswerMissingQuestion verifies answering an unknown id is not found
func TestAnswerMissingQuestion(t *testing.T) {
	b, ctx := mustNewBackend(t)
	s := mustCreateScholar(t, b, ctx, "ibrahim")

	_, err := b.AnswerQuestion(ctx, &backend.FatwaAnswer{QuestionID: 999, ScholarID: s.ID, Text: "x"})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := b.GetAnswer(ctx, 999); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetAnswer error = %v, want ErrNotFound", err)
	}
}

// TestRejectQuestion verifies only pending questions of the scholar can be rejected
func TestRejectQuestion(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	s := mustCreateScholar(t, b, ctx, "ibrahim")
	other := mustCreateScholar(t, b, ctx, "zakariya")

	qid, err := b.CreateQuestion(ctx, &backend.FatwaQuestion{
		UserID: a.ID, ScholarID: s.ID, Title: "t", Text: "body", Priority: backend.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}

	if err := b.RejectQuestion(ctx, qid, other.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("reject by other scholar error = %v, want ErrNotFound", err)
	}
	if err := b.RejectQuestion(ctx, qid, s.ID); err != nil {
		t.Fatalf("RejectQuestion error: %v", err)
	}
	if err := b.RejectQuestion(ctx, qid, s.ID); !errors.Is(err, backend.ErrInvalidState) {
		t.Errorf("second reject error = %v, want ErrInvalidState", err)
	}

	mine, err := b.ListQuestionsForUser(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListQuestionsForUser error: %v", err)
	}
	if len(mine) != 1 || mine[0].Status != backend.StatusRejected || mine[0].Priority != backend.PriorityHigh {
		t.Errorf("questions = %+v", mine)
	}
}

// TestListQuestionsNewestFirst verifies ordering by creation time
func TestListQuestionsNewestFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	b, ctx := mustNewBackend(t, WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	s := mustCreateScholar(t, b, ctx, "ibrahim")

	for _, title := range []string{"first", "second", "third"} {
		if _, err := b.CreateQuestion(ctx, &backend.FatwaQuestion{UserID: a.ID, ScholarID: s.ID, Title: title, Text: "x"}); err != nil {
			t.Fatalf("CreateQuestion error: %v", err)
		}
	}
	inbox, err := b.ListQuestionsForScholar(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListQuestionsForScholar error: %v", err)
	}
	if len(inbox) != 3 || inbox[0].Title != "third" || inbox[2].Title != "first" {
		t.Errorf("inbox order = %v", titles(inbox))
	}
}

// TestListingsOrderLegacyTimestamps verifies rows stamped by CURRENT_TIMESTAMP
// ("2025-03-10 12:00:00") sort by time against RFC3339 rows, not by text.
func TestListingsOrderLegacyTimestamps(t *testing.T) {
	b, ctx := mustNewBackend(t, WithClock(func() time.Time {
		return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	}))
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	m := mustCreateAccount(t, b, ctx, "maryam", "Female")
	s := mustCreateScholar(t, b, ctx, "ibrahim")

	if _, err := b.CreateQuestion(ctx, &backend.FatwaQuestion{UserID: a.ID, ScholarID: s.ID, Title: "morning", Text: "x"}); err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}
	if _, err := b.PostCommunityMessage(ctx, &backend.CommunityMessage{UserID: a.ID, Text: "morning", Community: backend.CommunityFemale}); err != nil {
		t.Fatalf("PostCommunityMessage error: %v", err)
	}
	if _, err := b.SendPersonalMessage(ctx, &backend.PersonalMessage{SenderID: a.ID, ReceiverID: m.ID, Text: "morning"}); err != nil {
		t.Fatalf("SendPersonalMessage error: %v", err)
	}

	// An earlier row with a legacy stamp, inserted last, and a later one.
	err := b.conn(ctx, func(q querier) error {
		for _, stmt := range []string{
			`INSERT INTO fatwa_questions (user_id, scholar_id, question_title, question_text, created_at) VALUES (?, ?, 'dawn', 'x', '2025-03-10 05:00:00')`,
			`INSERT INTO fatwa_questions (user_id, scholar_id, question_title, question_text, created_at) VALUES (?, ?, 'noon', 'x', '2025-03-10 12:00:00')`,
		} {
			if _, err := q.ExecContext(ctx, stmt, a.ID, s.ID); err != nil {
				return err
			}
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO personal_messages (sender_id, receiver_id, message_text, created_at) VALUES (?, ?, 'dawn', '2025-03-10 05:00:00')`, m.ID, a.ID); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO community_messages (user_id, message_text, community_type, created_at) VALUES (?, 'noon', 'female', '2025-03-10 12:00:00')`, a.ID)
		return err
	})
	if err != nil {
		t.Fatalf("insert legacy rows error: %v", err)
	}

	inbox, err := b.ListQuestionsForScholar(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListQuestionsForScholar error: %v", err)
	}
	if got := titles(inbox); len(got) != 3 || got[0] != "noon" || got[1] != "morning" || got[2] != "dawn" {
		t.Errorf("inbox order = %v, want [noon morning dawn]", got)
	}

	channel, err := b.ListCommunityMessages(ctx, backend.CommunityFemale, 0)
	if err != nil {
		t.Fatalf("ListCommunityMessages error: %v", err)
	}
	if len(channel) != 2 || channel[0].Text != "noon" {
		t.Errorf("channel = %+v, want noon first", channel)
	}

	conv, err := b.ListConversation(ctx, a.ID, m.ID)
	if err != nil {
		t.Fatalf("ListConversation error: %v", err)
	}
	if len(conv) != 2 || conv[0].Text != "dawn" {
		t.Errorf("conversation = %+v, want dawn first", conv)
	}
}

func titles(qs []backend.FatwaQuestion) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Title
	}
	return out
}

// =============================================================================
// Messaging
// =============================================================================

// TestCommunityMessages verifies channel separation, limit and names
func TestCommunityMessages(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	y := mustCreateAccount(t, b, ctx, "yusuf", "Male")

	for i := 0; i < 3; i++ {
		if _, err := b.PostCommunityMessage(ctx, &backend.CommunityMessage{UserID: a.ID, Text: "salaam", Community: backend.CommunityFemale}); err != nil {
			t.Fatalf("PostCommunityMessage error: %v", err)
		}
	}
	if _, err := b.PostCommunityMessage(ctx, &backend.CommunityMessage{UserID: y.ID, Text: "salaam", Community: backend.CommunityMale}); err != nil {
		t.Fatalf("PostCommunityMessage error: %v", err)
	}

	female, err := b.ListCommunityMessages(ctx, backend.CommunityFemale, 2)
	if err != nil {
		t.Fatalf("ListCommunityMessages error: %v", err)
	}
	if len(female) != 2 || female[0].UserName != "Member aisha" {
		t.Errorf("female = %+v", female)
	}
	if female[0].ID < female[1].ID {
		t.Error("messages not newest first")
	}

	male, err := b.ListCommunityMessages(ctx, backend.CommunityMale, 0)
	if err != nil {
		t.Fatalf("ListCommunityMessages error: %v", err)
	}
	if len(male) != 1 {
		t.Errorf("male len = %d, want 1", len(male))
	}
}

// TestPersonalMessages verifies conversation order, read flags and unread counts
func TestPersonalMessages(t *testing.T) {
	b, ctx := mustNewBackend(t)
	a := mustCreateAccount(t, b, ctx, "aisha", "Female")
	m := mustCreateAccount(t, b, ctx, "maryam", "Female")
	z := mustCreateAccount(t, b, ctx, "zainab", "Female")

	send := func(from, to int64, text string) int64 {
		t.Helper()
		id, err := b.SendPersonalMessage(ctx, &backend.PersonalMessage{SenderID: from, ReceiverID: to, Text: text})
		if err != nil {
			t.Fatalf("SendPersonalMessage error: %v", err)
		}
		return id
	}
	first := send(a.ID, m.ID, "salaam")
	send(m.ID, a.ID, "wa alaikum salaam")
	send(a.ID, m.ID, "how are you?")
	send(z.ID, m.ID, "unrelated")

	conv, err := b.ListConversation(ctx, m.ID, a.ID)
	if err != nil {
		t.Fatalf("ListConversation error: %v", err)
	}
	if len(conv) != 3 || conv[0].Text != "salaam" || conv[2].Text != "how are you?" {
		t.Errorf("conversation = %+v", conv)
	}

	unread, err := b.UnreadCount(ctx, m.ID)
	if err != nil {
		t.Fatalf("UnreadCount error: %v", err)
	}
	if unread != 3 {
		t.Errorf("unread = %d, want 3", unread)
	}

	if err := b.MarkMessageRead(ctx, first, a.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("sender marking read error = %v, want ErrNotFound", err)
	}
	if err := b.MarkMessageRead(ctx, first, m.ID); err != nil {
		t.Fatalf("MarkMessageRead error: %v", err)
	}
	unread, _ = b.UnreadCount(ctx, m.ID)
	if unread != 2 {
		t.Errorf("unread after read = %d, want 2", unread)
	}
}

// TestSeedCommunities verifies seeding needs an author and happens once
func TestSeedCommunities(t *testing.T) {
	b, ctx := mustNewBackend(t)
	welcome := map[backend.Community][]string{
		backend.CommunityMale:   {"welcome brothers", "be kind"},
		backend.CommunityFemale: {"welcome sisters", "be kind"},
	}

	n, err := b.SeedCommunities(ctx, welcome)
	if err != nil {
		t.Fatalf("SeedCommunities (no accounts) error: %v", err)
	}
	if n != 0 {
		t.Errorf("seeded %d without accounts, want 0", n)
	}

	mustCreateAccount(t, b, ctx, "aisha", "Female")
	n, err = b.SeedCommunities(ctx, welcome)
	if err != nil {
		t.Fatalf("SeedCommunities error: %v", err)
	}
	if n != 4 {
		t.Errorf("seeded %d, want 4", n)
	}

	n, err = b.SeedCommunities(ctx, welcome)
	if err != nil {
		t.Fatalf("SeedCommunities (again) error: %v", err)
	}
	if n != 0 {
		t.Errorf("second seed inserted %d, want 0", n)
	}
}
