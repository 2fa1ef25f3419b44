package notify_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stage5-reports/notify"
	"github.com/warp/stage5-reports/report"
)

func testEmail() report.Email {
	return report.Email{
		Subject:  "Stage 5 Completion Reports - September 01, 2025",
		HTMLBody: "<h2>Stage 5</h2>",
		Attachments: []report.Attachment{
			{Filename: "monthly_report_2025_08.csv", ContentType: "text/csv", Data: []byte("id,ucr\n1,A\n")},
			{Filename: "cumulative_report_2025_09.csv", Data: []byte("id\n1\n")},
		},
		Recipients: []string{"ops@example.com", "pm@example.com"},
	}
}

func newClient(t *testing.T, url string, timeout time.Duration) *notify.SendGrid {
	t.Helper()
	c, err := notify.NewSendGrid(notify.Config{
		Token:    "sg-token",
		Endpoint: url,
		Sender:   "reports@example.com",
		Timeout:  timeout,
	})
	require.NoError(t, err)
	return c
}

func TestSend_PayloadShape(t *testing.T) {
	// GIVEN: a mail API that records the request and accepts it
	var (
		gotAuth string
		gotCT   string
		payload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	// WHEN: sending one email with two attachments
	err := newClient(t, srv.URL, time.Second).Send(context.Background(), testEmail())

	// THEN: one SendGrid v3 request with everything in it
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-token", gotAuth)
	assert.Equal(t, "application/json", gotCT)

	assert.Equal(t, "Stage 5 Completion Reports - September 01, 2025", payload["subject"])
	assert.Equal(t, map[string]any{"email": "reports@example.com"}, payload["from"])

	personalizations := payload["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	to := personalizations[0].(map[string]any)["to"].([]any)
	assert.Equal(t, []any{
		map[string]any{"email": "ops@example.com"},
		map[string]any{"email": "pm@example.com"},
	}, to)

	contents := payload["content"].([]any)
	assert.Equal(t, map[string]any{"type": "text/html", "value": "<h2>Stage 5</h2>"}, contents[0])

	attachments := payload["attachments"].([]any)
	require.Len(t, attachments, 2)
	first := attachments[0].(map[string]any)
	assert.Equal(t, "monthly_report_2025_08.csv", first["filename"])
	assert.Equal(t, "text/csv", first["type"])
	assert.Equal(t, "attachment", first["disposition"])
	decoded, err := base64.StdEncoding.DecodeString(first["content"].(string))
	require.NoError(t, err)
	assert.Equal(t, "id,ucr\n1,A\n", string(decoded))

	assert.Equal(t, "text/csv", attachments[1].(map[string]any)["type"], "content type defaults to text/csv")
}

func TestSend_StatusHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"ok", http.StatusOK, "", false},
		{"accepted", http.StatusAccepted, "", false},
		{"server error", http.StatusInternalServerError, `{"errors":[{"message":"boom"}]}`, true},
		{"unauthorized", http.StatusUnauthorized, "bad token", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := newClient(t, srv.URL, time.Second).Send(context.Background(), testEmail())
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, report.ErrDelivery)
			var de *report.DeliveryError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.status, de.StatusCode)
			assert.Equal(t, tc.body, de.Body)
		})
	}
}

func TestSend_TruncatesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	err := newClient(t, srv.URL, time.Second).Send(context.Background(), testEmail())
	var de *report.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Body, 512)
}

func TestSend_Timeout(t *testing.T) {
	// GIVEN: a mail API slower than the client timeout
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	// WHEN: sending
	err := newClient(t, srv.URL, 50*time.Millisecond).Send(context.Background(), testEmail())

	// THEN: a delivery error without a status code
	assert.ErrorIs(t, err, report.ErrDelivery)
	var de *report.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Zero(t, de.StatusCode)
	assert.Error(t, de.Err)
}

func TestSend_NoRecipients(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", time.Second)
	email := testEmail()
	email.Recipients = nil
	assert.ErrorIs(t, c.Send(context.Background(), email), report.ErrConfiguration)
}

func TestNewSendGrid_MissingConfiguration(t *testing.T) {
	_, err := notify.NewSendGrid(notify.Config{Endpoint: "http://x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, report.ErrConfiguration)
	assert.Contains(t, err.Error(), "SENDGRID_BEARER_TOKEN")
	assert.Contains(t, err.Error(), "SENDER_EMAIL")
	assert.NotContains(t, err.Error(), "SENDGRID_ENDPOINT")
}
