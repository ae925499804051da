package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/infrastructure/auth"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "lon...", truncate("longerstring", 6))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1})

	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestLedgerConsistency(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  bool
		expected string
	}{
		{"consistent", http.StatusOK, `{"status":"consistent","consistent":true}`, false, "PASSED"},
		{"inconsistent", http.StatusConflict, `{"status":"inconsistent","consistent":false,"message":"off by 1.00"}`, true, "off by 1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery, gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			out, err := runCLI(t, "--url", srv.URL, "--token", "tok", "ledger", "consistency", "--restaurant", "rest-1")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out, tt.expected)
			assert.Equal(t, "restaurant_id=rest-1", gotQuery)
			assert.Equal(t, "Bearer tok", gotAuth)
		})
	}
}

func TestLedgerConsistency_RequiresRestaurant(t *testing.T) {
	_, err := runCLI(t, "ledger", "consistency")
	assert.Error(t, err)
}

func TestApplyRules_DrainsFullBatches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.RuleBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Limit)

		n := atomic.AddInt32(&calls, 1)
		resp := dto.BatchResultResponse{Applied: 2, Total: 2}
		if n == 3 {
			resp = dto.BatchResultResponse{Applied: 0, Failed: 1, Total: 1}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	out, err := runCLI(t, "--url", srv.URL, "rules", "apply", "--restaurant", "rest-1", "--limit", "2", "--all")
	require.NoError(t, err)

	var total dto.BatchResultResponse
	require.NoError(t, json.Unmarshal([]byte(out), &total))
	assert.Equal(t, dto.BatchResultResponse{Applied: 4, Failed: 1, Total: 5}, total)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestApplyRules_StopsWhenNoProgress(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(dto.BatchResultResponse{Failed: 2, Total: 2})
	}))
	defer srv.Close()

	_, err := runCLI(t, "--url", srv.URL, "rules", "apply", "--restaurant", "rest-1", "--limit", "2", "--all")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBoundaryAdjust_ReportsRebuildFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/restaurants/rest-1/boundary/adjust", r.URL.Path)
		_, _ = w.Write([]byte(`{"violated":true,"event_count":2,"rebuild_error":"timeout"}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "--url", srv.URL, "boundary", "adjust", "--restaurant", "rest-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, out, `"event_count": 2`)
}

func TestAPIErrorsCarryKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"failed to rebuild balances","kind":"unauthorized","message":"insufficient role"}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, "--url", srv.URL, "balances", "rebuild", "--restaurant", "rest-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Contains(t, err.Error(), "403")
}

func TestTokenIssue(t *testing.T) {
	out, err := runCLI(t, "token", "issue", "--user", "user-7", "--email", "gm@example.com", "--secret", "cli-secret", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("cli-secret", time.Hour).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
	assert.Equal(t, "gm@example.com", claims.Email)
	assert.False(t, claims.Service)
}

func TestParsePeriod(t *testing.T) {
	from, to, err := parsePeriod("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, to.Sub(from))

	_, _, err = parsePeriod("2024-02-01", "2024-01-31")
	assert.Error(t, err)

	_, _, err = parsePeriod("01/02/2024", "2024-01-31")
	assert.Error(t, err)
}

func TestMembersAdd_RejectsUnknownRole(t *testing.T) {
	_, err := runCLI(t, "members", "add", "--restaurant", "rest-1", "--user", "u1", "--role", "sommelier")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}
