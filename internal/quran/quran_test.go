package quran_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imanconnect/internal/config"
	"imanconnect/internal/quran"
	"imanconnect/internal/ratelimit"
)

const surahIndex = `{"code":200,"status":"OK","data":[
 {"number":1,"name":"سُورَةُ ٱلْفَاتِحَةِ","englishName":"Al-Faatiha","englishNameTranslation":"The Opening","numberOfAyahs":7,"revelationType":"Meccan"},
 {"number":112,"name":"سُورَةُ الإِخْلَاصِ","englishName":"Al-Ikhlaas","englishNameTranslation":"Sincerity","numberOfAyahs":4,"revelationType":"Meccan"}
]}`

func newServer(t *testing.T, handler http.HandlerFunc) *quran.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := ratelimit.NewClient(ratelimit.Config{MaxRetries: 3, RetryDelay: time.Millisecond})
	return quran.NewClient(srv.URL+"/v1/", hc)
}

func TestVerseTextAndTranslation(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/ayah/112:1/ar":
			fmt.Fprint(w, `{"code":200,"status":"OK","data":{"number":6222,"text":"قُلْ هُوَ ٱللَّهُ أَحَدٌ"}}`)
		case "/v1/ayah/112:1/en.sahih":
			fmt.Fprint(w, `{"code":200,"status":"OK","data":{"number":6222,"text":"Say, He is Allah, [who is] One,"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"code":404,"status":"NOT FOUND","data":"Not found"}`)
		}
	})
	ctx := context.Background()

	text, err := client.VerseText(ctx, 112, 1)
	require.NoError(t, err)
	assert.Equal(t, "قُلْ هُوَ ٱللَّهُ أَحَدٌ", text)

	tr, err := client.Translation(ctx, 112, 1)
	require.NoError(t, err)
	assert.Equal(t, "Say, He is Allah, [who is] One,", tr)

	_, err = client.VerseText(ctx, 112, 9)
	assert.ErrorIs(t, err, quran.ErrNotFound)
}

func TestVerseOutOfRangeSkipsRequest(t *testing.T) {
	var calls int32
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	for _, ref := range [][2]int{{0, 1}, {115, 1}, {2, 0}} {
		_, err := client.VerseText(context.Background(), ref[0], ref[1])
		assert.ErrorIs(t, err, quran.ErrNotFound, "%v", ref)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestListSurahsIsCached(t *testing.T) {
	var calls int32
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v1/surah" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, surahIndex)
	})
	ctx := context.Background()

	surahs, err := client.ListSurahs(ctx)
	require.NoError(t, err)
	require.Len(t, surahs, 2)
	assert.Equal(t, "Al-Faatiha", surahs[0].EnglishName)
	assert.Equal(t, 4, surahs[1].NumberOfAyahs)

	surahs[0].EnglishName = "mutated"
	again, err := client.ListSurahs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Al-Faatiha", again[0].EnglishName, "callers get a copy")

	s, err := client.Surah(ctx, 112)
	require.NoError(t, err)
	assert.Equal(t, "Sincerity", s.EnglishNameTranslation)

	_, err = client.Surah(ctx, 50)
	assert.ErrorIs(t, err, quran.ErrNotFound)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRetriesThenSucceeds(t *testing.T) {
	var calls int32
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, surahIndex)
	})

	surahs, err := client.ListSurahs(context.Background())
	require.NoError(t, err)
	assert.Len(t, surahs, 2)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRateLimitSurfaces(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.VerseText(context.Background(), 1, 1)
	var rl *ratelimit.RateLimitError
	require.True(t, errors.As(err, &rl), "got %v", err)
}

func TestAPIErrorInEnvelope(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":400,"status":"Bad Request","data":"Invalid edition"}`)
	})

	_, err := client.Translation(context.Background(), 1, 1)
	var apiErr *quran.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestMissingData(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"status":"OK"}`)
	})
	_, err := client.VerseText(context.Background(), 1, 1)
	assert.ErrorContains(t, err, "missing data")
}

func TestClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Quran
	client, err := quran.ClientFromConfig(cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg.Timeout = "soon"
	_, err = quran.ClientFromConfig(cfg)
	assert.ErrorContains(t, err, "quran.timeout")
}
