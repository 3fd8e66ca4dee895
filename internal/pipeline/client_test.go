package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer returns a test server that writes the given frames for
// POST /api/generate, flushing after each to force chunked delivery.
func streamServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != generatePath {
			http.NotFound(w, r)
			return
		}
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, frame := range frames {
			_, _ = fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func TestGenerateSuccess(t *testing.T) {
	srv := streamServer(t,
		"data: {\"status\":\"processing\",\"stage\":1,\"stage_name\":\"planning\",\"progress_percentage\":10}\n",
		"data: {\"status\":\"processing\",\"stage\":2,\"stage_name\":\"rendering\",\"progress_percentage\":60,\"message\":\"rendering sections\"}\n",
		"data: {\"status\":\"completed\",\"job_id\":\"job-1\",\"sections\":[\"s1\",\"s2\"],\"sectionDetails\":[{\"section\":\"s1\",\"video_url\":\"http://v/1\",\"voiceover_script\":\"hello\"}]}\n",
	)
	defer srv.Close()

	var progress []Progress
	client := newTestClient(srv.URL)
	result, err := client.Generate(context.Background(), Request{Topic: "gravity"}, func(p Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, []string{"s1", "s2"}, result.Sections)
	require.Len(t, progress, 2)
	assert.Equal(t, "planning", progress[0].StageName)
	assert.Equal(t, 60.0, progress[1].Percentage)
	assert.Equal(t, "rendering sections", progress[1].Message)

	detail := result.Detail("s1")
	require.NotNil(t, detail)
	assert.Equal(t, "hello", detail.VoiceoverScript)
	assert.Nil(t, result.Detail("s2"))
}

func TestGenerateFrameSplitAcrossChunks(t *testing.T) {
	// One frame delivered in three network chunks; the buffer must
	// retain partial lines until the newline arrives.
	full := "data: {\"status\":\"completed\",\"sections\":[\"only\"]}\n"
	srv := streamServer(t,
		"data: {\"status\":\"proc",
		"essing\",\"progress_percentage\":5}\n"+full[:17],
		full[17:],
	)
	defer srv.Close()

	result, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, result.Sections)
}

func TestGenerateTrailingUnterminatedFrame(t *testing.T) {
	// Terminal frame arrives without a trailing newline before EOF.
	srv := streamServer(t,
		"data: {\"status\":\"processing\"}\n",
		"data: {\"status\":\"completed\",\"sections\":[\"s1\"]}",
	)
	defer srv.Close()

	result, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, result.Sections)
}

func TestGenerateMalformedFrameSkipped(t *testing.T) {
	srv := streamServer(t,
		"data: {not json at all\n",
		"noise without prefix\n",
		"data: {\"status\":\"completed\",\"sections\":[\"s1\"]}\n",
	)
	defer srv.Close()

	result, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, result.Sections)
}

func TestGenerateBackendFailure(t *testing.T) {
	srv := streamServer(t,
		"data: {\"status\":\"processing\"}\n",
		"data: {\"status\":\"failed\",\"error\":\"render farm unavailable\"}\n",
	)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "render farm unavailable")
}

func TestGenerateStreamEndsWithoutTerminal(t *testing.T) {
	srv := streamServer(t,
		"data: {\"status\":\"processing\",\"progress_percentage\":40}\n",
	)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "without completing")
}

func TestGenerateCompletedWithoutSections(t *testing.T) {
	// A completed frame with an empty section list is not a success.
	srv := streamServer(t,
		"data: {\"status\":\"completed\",\"sections\":[]}\n",
	)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "x"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "503")
}

func TestGenerateSendsTopic(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, "data: {\"status\":\"completed\",\"sections\":[\"s1\"]}\n")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), Request{Topic: "entropy", Style: "visual"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "entropy", got.Topic)
	assert.Equal(t, "visual", got.Style)
}

func TestGenerateDetailBackfill(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(generatePath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "data: {\"status\":\"completed\",\"sections\":[\"s1\",\"s2\"],\"sectionDetails\":[{\"section\":\"s1\",\"video_url\":\"http://v/1\"}]}\n")
	})
	mux.HandleFunc(sectionDetailPathPrefix, func(w http.ResponseWriter, r *http.Request) {
		section := strings.TrimPrefix(r.URL.Path, sectionDetailPathPrefix)
		_ = json.NewEncoder(w).Encode(SectionDetail{
			Section:  section,
			VideoURL: "http://v/" + section,
			Title:    "backfilled " + section,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:             srv.URL,
		RequestsPerSecond:   1000,
		Burst:               1000,
		FetchSectionDetails: true,
	})

	result, err := client.Generate(context.Background(), Request{Topic: "x"}, nil)
	require.NoError(t, err)

	// s1 came inline, s2 was fetched.
	require.NotNil(t, result.Detail("s1"))
	d2 := result.Detail("s2")
	require.NotNil(t, d2)
	assert.Equal(t, "backfilled s2", d2.Title)
}

func TestGenerateContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := streamServer(t, "data: {\"status\":\"completed\",\"sections\":[\"s1\"]}\n")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(ctx, Request{Topic: "x"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationFailed) || errors.Is(err, context.Canceled))
}
