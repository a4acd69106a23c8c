package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName  string
	password     string
	lastActiveAt time.Time
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName:  fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:     "testpassword123",
		lastActiveAt: time.Now(),
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithLastActiveAt sets the activity timestamp used by opponent discovery
func (b *UserBuilder) WithLastActiveAt(at time.Time) *UserBuilder {
	b.lastActiveAt = at
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		LastActiveAt: b.lastActiveAt,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID           string    `json:"id"`
		DisplayName  string    `json:"displayName"`
		LastActiveAt time.Time `json:"lastActiveAt"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		DisplayName: authResp.User.DisplayName,
	}

	return user, authResp.AccessToken
}

// BattleBuilder creates test battles with a builder pattern
type BattleBuilder struct {
	creator         *domain.User
	opponent        *domain.User
	exerciseType    string
	durationSeconds int
	status          domain.BattleStatus
}

// NewBattleBuilder creates a new BattleBuilder with default values
func NewBattleBuilder(creator, opponent *domain.User) *BattleBuilder {
	return &BattleBuilder{
		creator:         creator,
		opponent:        opponent,
		exerciseType:    "pushups",
		durationSeconds: 60,
		status:          domain.BattleStatusPending,
	}
}

// WithExerciseType sets the exercise type
func (b *BattleBuilder) WithExerciseType(exerciseType string) *BattleBuilder {
	b.exerciseType = exerciseType
	return b
}

// WithDuration sets the battle duration in seconds
func (b *BattleBuilder) WithDuration(seconds int) *BattleBuilder {
	b.durationSeconds = seconds
	return b
}

// WithStatus sets the battle status
func (b *BattleBuilder) WithStatus(status domain.BattleStatus) *BattleBuilder {
	b.status = status
	return b
}

// Build creates the battle in the database
func (b *BattleBuilder) Build(t *testing.T, db *gorm.DB) *domain.Battle {
	t.Helper()

	battle := &domain.Battle{
		ID:              uuid.New(),
		CreatorID:       b.creator.ID,
		OpponentID:      b.opponent.ID,
		ExerciseType:    b.exerciseType,
		DurationSeconds: b.durationSeconds,
		Status:          b.status,
		CreatedAt:       time.Now(),
	}

	if b.status == domain.BattleStatusActive || b.status == domain.BattleStatusCompleted {
		now := time.Now()
		battle.StartedAt = &now
	}

	if err := db.Create(battle).Error; err != nil {
		t.Fatalf("failed to create battle: %v", err)
	}

	return battle
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
