package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackit/stackit/backend/internal/ai"
	"github.com/stackit/stackit/backend/internal/auth"
	"github.com/stackit/stackit/backend/internal/config"
	"github.com/stackit/stackit/backend/internal/database/dbtest"
	"github.com/stackit/stackit/backend/internal/handlers"
	"github.com/stackit/stackit/backend/internal/models"
	"github.com/stackit/stackit/backend/internal/server"
	"github.com/stackit/stackit/backend/internal/voting"
)

var pg *dbtest.Postgres

func TestMain(m *testing.M) {
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	var err error
	pg, err = dbtest.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	pg.Stop(ctx)
	os.Exit(code)
}

type canned struct{ reply string }

func (c canned) Generate(context.Context, string) (string, error) { return c.reply, nil }

type client struct {
	t      *testing.T
	router http.Handler
}

func (c *client) call(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (c *client) register(email string) (token, id string) {
	c.t.Helper()
	status, body := c.call(http.MethodPost, "/api/auth/register", "", gin.H{
		"email":     email,
		"firstName": "Test",
		"lastName":  "User",
		"password":  "secret123",
	})
	require.Equal(c.t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	return data["token"].(string), data["user"].(map[string]any)["id"].(string)
}

func newClient(t *testing.T) *client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := pg.DB.GetDB()
	dbtest.Reset(t, db)

	cfg := &config.Config{AppEnv: "test", Port: "0", CORSOrigin: "http://localhost:3000"}
	tokens := auth.NewTokens("integration-secret", time.Hour, nil)
	votes := voting.NewService(voting.NewGormLedger(db), voting.NewGormTargets(db), nil)
	h := handlers.NewHandler(handlers.Deps{
		DB:     db,
		Tokens: tokens,
		Votes:  votes,
		AI:     ai.NewService(canned{reply: "Use a unique index."}, nil),
	})
	authn := auth.NewAuthenticator(tokens, auth.NewGormUsers(db))
	s := server.New(cfg, pg.DB, h, authn, nil, nil)
	return &client{t: t, router: s.RegisterRoutes()}
}

func data(body map[string]any) map[string]any {
	return body["data"].(map[string]any)
}

func TestVoteFlow(t *testing.T) {
	c := newClient(t)
	alice, _ := c.register("alice@example.com")
	bob, _ := c.register("bob@example.com")

	status, body := c.call(http.MethodPost, "/api/questions", alice, gin.H{
		"title":       "How do I upsert with gorm?",
		"description": "I want one row per voter and target in postgres.",
		"tags":        []string{"go", "gorm", "postgres"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	questionID := data(body)["id"].(string)
	assert.ElementsMatch(t, []any{"go", "gorm", "postgres"}, data(body)["tags"])

	votePath := "/api/questions/" + questionID + "/vote"

	status, body = c.call(http.MethodPost, votePath, alice, gin.H{"voteType": "UP"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), data(body)["upvotes"])

	status, body = c.call(http.MethodPost, votePath, bob, gin.H{"voteType": "DOWN"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), data(body)["upvotes"])
	assert.Equal(t, float64(1), data(body)["downvotes"])

	status, body = c.call(http.MethodPost, votePath, alice, gin.H{"voteType": "DOWN"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), data(body)["upvotes"])
	assert.Equal(t, float64(2), data(body)["downvotes"])
	assert.Equal(t, "DOWN", data(body)["userVote"])

	status, body = c.call(http.MethodGet, "/api/questions/"+questionID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(-2), data(body)["net"])

	// Answer and vote on it.
	status, body = c.call(http.MethodPost, "/api/answers", bob, gin.H{"content": "Use ON CONFLICT.", "questionId": questionID})
	require.Equal(t, http.StatusCreated, status, body)
	answerID := data(body)["id"].(string)

	status, _ = c.call(http.MethodPost, "/api/answers/"+answerID+"/vote", alice, gin.H{"voteType": "UP"})
	require.Equal(t, http.StatusOK, status)

	status, body = c.call(http.MethodGet, "/api/answers/question/"+questionID, "", nil)
	require.Equal(t, http.StatusOK, status)
	answers := body["data"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, float64(1), answers[0].(map[string]any)["upvotes"])

	// Only the owner may delete; deleting removes every vote.
	status, _ = c.call(http.MethodDelete, "/api/questions/"+questionID, bob, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = c.call(http.MethodDelete, "/api/questions/"+questionID, alice, nil)
	require.Equal(t, http.StatusOK, status)

	var remaining int64
	require.NoError(t, pg.DB.GetDB().Model(&models.Vote{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	status, body = c.call(http.MethodPost, votePath, bob, gin.H{"voteType": "UP"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Question not found", body["error"])
}

func TestListQuestions(t *testing.T) {
	c := newClient(t)
	token, _ := c.register("carol@example.com")

	for _, q := range []struct {
		title string
		tags  []string
	}{
		{"Goroutine leaks in tests", []string{"go", "testing"}},
		{"Postgres unique indexes", []string{"postgres"}},
		{"Gin route groups explained", []string{"go", "gin"}},
	} {
		status, body := c.call(http.MethodPost, "/api/questions", token, gin.H{
			"title":       q.title,
			"description": "A description that is long enough to pass.",
			"tags":        q.tags,
		})
		require.Equal(t, http.StatusCreated, status, body)
	}

	status, body := c.call(http.MethodGet, "/api/questions?tags=go&limit=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pagination["total"])
	assert.Equal(t, float64(2), pagination["pages"])

	status, body = c.call(http.MethodGet, "/api/questions?q=POSTGRES", "", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Postgres unique indexes", items[0].(map[string]any)["title"])

	status, body = c.call(http.MethodGet, "/api/questions?sort=oldest", "", nil)
	require.Equal(t, http.StatusOK, status)
	items = body["data"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "Goroutine leaks in tests", items[0].(map[string]any)["title"])

	// Wildcards in q match literally.
	status, body = c.call(http.MethodGet, "/api/questions?q=%25", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])

	status, body = c.call(http.MethodGet, "/api/questions?q=_", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestListQuestions_ScoresEachItem(t *testing.T) {
	c := newClient(t)
	alice, _ := c.register("gina@example.com")
	bob, _ := c.register("hank@example.com")

	ids := map[string]string{}
	for _, title := range []string{"First scored question", "Second scored question", "Unvoted question here"} {
		status, body := c.call(http.MethodPost, "/api/questions", alice, gin.H{
			"title":       title,
			"description": "A description that is long enough to pass.",
			"tags":        []string{"go"},
		})
		require.Equal(t, http.StatusCreated, status, body)
		ids[title] = data(body)["id"].(string)
	}

	for _, v := range []struct {
		token, title, dir string
	}{
		{alice, "First scored question", "UP"},
		{bob, "First scored question", "UP"},
		{alice, "Second scored question", "DOWN"},
	} {
		status, _ := c.call(http.MethodPost, "/api/questions/"+ids[v.title]+"/vote", v.token, gin.H{"voteType": v.dir})
		require.Equal(t, http.StatusOK, status)
	}

	status, body := c.call(http.MethodGet, "/api/questions", bob, nil)
	require.Equal(t, http.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 3)

	byTitle := map[string]map[string]any{}
	for _, item := range items {
		q := item.(map[string]any)
		byTitle[q["title"].(string)] = q
	}
	first := byTitle["First scored question"]
	assert.Equal(t, float64(2), first["upvotes"])
	assert.Equal(t, float64(2), first["net"])
	assert.Equal(t, "UP", first["userVote"])

	second := byTitle["Second scored question"]
	assert.Equal(t, float64(1), second["downvotes"])
	assert.Equal(t, float64(-1), second["net"])
	assert.NotContains(t, second, "userVote")

	unvoted := byTitle["Unvoted question here"]
	assert.Equal(t, float64(0), unvoted["upvotes"])
	assert.Equal(t, float64(0), unvoted["downvotes"])
}

func TestReadsShowCallerVote(t *testing.T) {
	c := newClient(t)
	alice, _ := c.register("ivy@example.com")
	bob, _ := c.register("jack@example.com")

	status, body := c.call(http.MethodPost, "/api/questions", alice, gin.H{
		"title":       "Who voted on this question?",
		"description": "Reads should show the caller their own vote.",
		"tags":        []string{"voting"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	questionID := data(body)["id"].(string)

	status, body = c.call(http.MethodPost, "/api/answers", alice, gin.H{"content": "An answer.", "questionId": questionID})
	require.Equal(t, http.StatusCreated, status, body)
	answerID := data(body)["id"].(string)

	status, _ = c.call(http.MethodPost, "/api/questions/"+questionID+"/vote", bob, gin.H{"voteType": "UP"})
	require.Equal(t, http.StatusOK, status)
	status, _ = c.call(http.MethodPost, "/api/answers/"+answerID+"/vote", bob, gin.H{"voteType": "DOWN"})
	require.Equal(t, http.StatusOK, status)

	status, body = c.call(http.MethodGet, "/api/questions/"+questionID, bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "UP", data(body)["userVote"])

	status, body = c.call(http.MethodGet, "/api/questions/"+questionID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, data(body), "userVote")
	assert.Equal(t, float64(1), data(body)["upvotes"])

	status, body = c.call(http.MethodGet, "/api/questions/"+questionID, alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, data(body), "userVote")

	status, body = c.call(http.MethodGet, "/api/answers/question/"+questionID, bob, nil)
	require.Equal(t, http.StatusOK, status)
	answers := body["data"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, "DOWN", answers[0].(map[string]any)["userVote"])

	// An invalid token on an optional route reads anonymously.
	status, body = c.call(http.MethodGet, "/api/questions/"+questionID, "not-a-token", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, data(body), "userVote")
}

func TestUserProfile(t *testing.T) {
	c := newClient(t)
	kate, kateID := c.register("kate@example.com")
	leo, _ := c.register("leo@example.com")

	var questionIDs []string
	for _, title := range []string{"Kate's older question", "Kate's newer question"} {
		status, body := c.call(http.MethodPost, "/api/questions", kate, gin.H{
			"title":       title,
			"description": "A description that is long enough to pass.",
			"tags":        []string{"go"},
		})
		require.Equal(t, http.StatusCreated, status, body)
		questionIDs = append(questionIDs, data(body)["id"].(string))
	}

	status, body := c.call(http.MethodPost, "/api/questions", leo, gin.H{
		"title":       "Leo asks something else",
		"description": "A description that is long enough to pass.",
		"tags":        []string{"sql"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	leoQuestion := data(body)["id"].(string)

	status, _ = c.call(http.MethodPost, "/api/answers", kate, gin.H{"content": "Kate answers Leo.", "questionId": leoQuestion})
	require.Equal(t, http.StatusCreated, status)
	status, _ = c.call(http.MethodPost, "/api/questions/"+leoQuestion+"/vote", kate, gin.H{"voteType": "UP"})
	require.Equal(t, http.StatusOK, status)

	status, body = c.call(http.MethodGet, "/api/users/"+kateID, "", nil)
	require.Equal(t, http.StatusOK, status, body)
	profile := data(body)
	assert.Equal(t, "kate@example.com", profile["user"].(map[string]any)["email"])
	assert.NotEmpty(t, profile["createdAt"])
	stats := profile["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["questionsCount"])
	assert.Equal(t, float64(1), stats["answersCount"])
	assert.Equal(t, float64(1), stats["votesCount"])

	status, body = c.call(http.MethodGet, "/api/users/"+kateID+"/questions", "", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 2)
	newest := items[0].(map[string]any)
	assert.Equal(t, "Kate's newer question", newest["title"])
	assert.Equal(t, questionIDs[1], newest["id"])
	assert.Equal(t, []any{"go"}, newest["tags"])
	assert.Equal(t, "Kate's older question", items[1].(map[string]any)["title"])

	status, body = c.call(http.MethodGet, "/api/users/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])

	status, body = c.call(http.MethodGet, "/api/users/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid user ID", body["error"])

	status, _ = c.call(http.MethodGet, "/api/users/not-a-uuid/questions", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthFlow(t *testing.T) {
	c := newClient(t)
	token, _ := c.register("dave@example.com")

	status, body := c.call(http.MethodPost, "/api/auth/register", "", gin.H{"email": "DAVE@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User with this email already exists", body["error"])

	status, _ = c.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": "dave@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = c.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": "dave@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, data(body)["token"])

	status, body = c.call(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	stats := data(body)["stats"].(map[string]any)
	assert.Equal(t, float64(0), stats["questionsCount"])

	status, _ = c.call(http.MethodPut, "/api/auth/change-password", token, gin.H{"currentPassword": "secret123", "newPassword": "newsecret"})
	require.Equal(t, http.StatusOK, status)

	status, _ = c.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": "dave@example.com", "password": "newsecret"})
	assert.Equal(t, http.StatusOK, status)
}

func TestAIGeneratedAnswer(t *testing.T) {
	c := newClient(t)
	owner, _ := c.register("erin@example.com")
	other, _ := c.register("frank@example.com")

	status, body := c.call(http.MethodPost, "/api/questions", owner, gin.H{
		"title":       "How to keep one vote per user?",
		"description": "Users should not be able to vote twice on a post.",
		"tags":        []string{"sql"},
	})
	require.Equal(t, http.StatusCreated, status)
	questionID := data(body)["id"].(string)

	status, _ = c.call(http.MethodPost, "/api/ai/questions/"+questionID+"/answer", other, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = c.call(http.MethodPost, "/api/ai/questions/"+questionID+"/answer", owner, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Use a unique index.", data(body)["content"])
	assert.Equal(t, models.AIUserEmail, data(body)["user"].(map[string]any)["email"])
}
