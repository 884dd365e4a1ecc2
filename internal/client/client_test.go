package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/send_message" {
			t.Errorf("Expected /api/send_message, got %s", r.URL.Path)
		}

		// Verify bearer auth is preferred over the legacy header
		if got := r.Header.Get("Authorization"); got != "Bearer tok-a" {
			t.Errorf("Expected Authorization 'Bearer tok-a', got '%s'", got)
		}
		if got := r.Header.Get("X-User-Id"); got != "" {
			t.Errorf("Expected no X-User-Id header, got '%s'", got)
		}

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ThreadID != "thread-1" {
			t.Errorf("Expected thread_id thread-1, got %s", req.ThreadID)
		}
		if req.Content != "hello" {
			t.Errorf("Expected content hello, got %s", req.Content)
		}

		json.NewEncoder(w).Encode(Message{
			ID:        "m1",
			ThreadID:  req.ThreadID,
			CreatedBy: req.UserID,
			Audience:  AudienceInboxToBot,
			Content:   req.Content,
		})
	}))
	defer server.Close()

	c := New(server.URL)
	cred := Credential{Token: "tok-a", ProfileID: "A1"}
	msg, err := c.SendMessage(context.Background(), cred, &SendMessageRequest{
		ThreadID: "thread-1",
		UserID:   "A1",
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if msg.ID != "m1" {
		t.Errorf("Expected message id m1, got %s", msg.ID)
	}
	if msg.Audience != AudienceInboxToBot {
		t.Errorf("Expected audience %s, got %s", AudienceInboxToBot, msg.Audience)
	}
}

func TestSendMessage_LegacyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-User-Id"); got != "A1" {
			t.Errorf("Expected X-User-Id 'A1', got '%s'", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Expected no Authorization header, got '%s'", got)
		}
		json.NewEncoder(w).Encode(Message{ID: "m1"})
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.SendMessage(context.Background(), Credential{ProfileID: "A1"}, &SendMessageRequest{
		ThreadID: "thread-1",
		UserID:   "A1",
		Content:  "hi",
	})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
}

func TestGetMessages_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get_messages" {
			t.Errorf("Expected /api/get_messages, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("thread_id") != "thread-1" {
			t.Errorf("Expected thread_id thread-1, got %s", q.Get("thread_id"))
		}
		if q.Get("user_id") != "A1" {
			t.Errorf("Expected user_id A1, got %s", q.Get("user_id"))
		}
		if q.Get("limit") != "50" {
			t.Errorf("Expected limit 50, got %s", q.Get("limit"))
		}
		json.NewEncoder(w).Encode(GetMessagesResponse{
			OK: true,
			Items: []Message{
				{ID: "m1", Audience: AudienceBotToUser, RecipientProfileID: "A1"},
				{ID: "m2", Audience: AudienceInboxToBot},
			},
		})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.GetMessages(context.Background(), Credential{ProfileID: "A1"}, &GetMessagesRequest{
		ThreadID: "thread-1",
		UserID:   "A1",
		Limit:    50,
	})
	if err != nil {
		t.Fatalf("GetMessages() error: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(resp.Items))
	}
	if resp.Items[0].RecipientProfileID != "A1" {
		t.Errorf("Expected recipient A1, got %s", resp.Items[0].RecipientProfileID)
	}
}

func TestBotProcess_DryRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/bot/process" {
			t.Errorf("Expected /api/bot/process, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("dry_run") != "true" {
			t.Errorf("Expected dry_run=true, got %s", q.Get("dry_run"))
		}
		if q.Get("limit") != "10" {
			t.Errorf("Expected limit 10, got %s", q.Get("limit"))
		}
		json.NewEncoder(w).Encode(BotProcessResponse{
			OK:    true,
			Stats: BotProcessStats{Scanned: 1, DryRun: true},
			Items: []BotProcessItem{
				{
					HumanMessageID: "h1",
					ThreadID:       "thread-1",
					Previews: []BotPreview{
						{RecipientProfileID: "B1", Content: "hello"},
					},
				},
			},
		})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.BotProcess(context.Background(), Credential{Token: "op"}, &BotProcessRequest{
		ThreadID: "thread-1",
		Limit:    10,
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("BotProcess() error: %v", err)
	}
	if !resp.Stats.DryRun {
		t.Error("Expected dry_run stats")
	}
	if resp.Items[0].Previews[0].Content != "hello" {
		t.Errorf("Expected preview 'hello', got %q", resp.Items[0].Previews[0].Content)
	}
}

func TestBotProcess_Publish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("dry_run"); got != "false" {
			t.Errorf("Expected dry_run=false, got %s", got)
		}
		json.NewEncoder(w).Encode(BotProcessResponse{
			OK:    true,
			Stats: BotProcessStats{Scanned: 1, Processed: 1, Inserted: 2},
		})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.BotProcess(context.Background(), Credential{Token: "op"}, &BotProcessRequest{
		ThreadID: "thread-1",
		DryRun:   false,
	})
	if err != nil {
		t.Fatalf("BotProcess() error: %v", err)
	}
	if resp.Stats.Inserted != 2 {
		t.Errorf("Expected 2 inserted, got %d", resp.Stats.Inserted)
	}
}

func TestFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("loop_id") != "loop-1" {
			t.Errorf("Expected loop_id loop-1, got %s", q.Get("loop_id"))
		}
		if q.Get("for_profile_id") != "A1" {
			t.Errorf("Expected for_profile_id A1, got %s", q.Get("for_profile_id"))
		}
		if q.Get("preview") != "true" {
			t.Errorf("Expected preview=true, got %s", q.Get("preview"))
		}
		json.NewEncoder(w).Encode(FeedResponse{
			LoopID:       "loop-1",
			ForProfileID: "A1",
			ItemsCount:   3,
			DigestText:   "Three updates since yesterday.",
			Engine:       "openai",
		})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Feed(context.Background(), Credential{ProfileID: "A1"}, &FeedRequest{
		LoopID:       "loop-1",
		ForProfileID: "A1",
		Preview:      true,
	})
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if resp.ItemsCount != 3 {
		t.Errorf("Expected items_count 3, got %d", resp.ItemsCount)
	}
}

func TestBotPostDigest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bot_post_digest" {
			t.Errorf("Expected /api/bot_post_digest, got %s", r.URL.Path)
		}
		var req BotPostDigestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.LoopID != "loop-1" || req.ThreadID != "thread-1" || req.ForProfileID != "A1" {
			t.Errorf("Unexpected request body: %+v", req)
		}
		json.NewEncoder(w).Encode(BotPostDigestResponse{OK: true, DigestText: "No new updates."})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.BotPostDigest(context.Background(), Credential{Token: "op"}, &BotPostDigestRequest{
		LoopID:       "loop-1",
		ThreadID:     "thread-1",
		ForProfileID: "A1",
	})
	if err != nil {
		t.Fatalf("BotPostDigest() error: %v", err)
	}
	if !resp.OK {
		t.Error("Expected ok=true")
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok", RestOK: true, DBOK: true, LatencyMS: 12})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" || !resp.RestOK {
		t.Errorf("Unexpected health response: %+v", resp)
	}
}

func TestError_DetailFromJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Thread not found"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.GetMessages(context.Background(), Credential{ProfileID: "A1"}, &GetMessagesRequest{
		ThreadID: "nope",
		UserID:   "A1",
	})
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Detail() != "Thread not found" {
		t.Errorf("Expected detail 'Thread not found', got %q", apiErr.Detail())
	}
	want := "loop api error (status 404): Thread not found"
	if apiErr.Error() != want {
		t.Errorf("Expected %q, got %q", want, apiErr.Error())
	}
}

func TestError_GenericWhenBodyNotJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("Expected error for 502 response")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	want := "loop api error: unexpected status 502"
	if apiErr.Error() != want {
		t.Errorf("Expected %q, got %q", want, apiErr.Error())
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://localhost:99999") // Invalid port
	_, err := c.Health(context.Background())
	if err == nil {
		t.Error("Expected error for unreachable server")
	}
}
