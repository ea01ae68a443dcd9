package streaming

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cityforge/server/internal/worldmap"
)

// maxViewRadiusChunks caps subscription windows so a bad client cannot
// request the whole world every frame.
const maxViewRadiusChunks = 64

// Manager coordinates per-client streaming subscriptions.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
}

// Subscription tracks one client's camera window.
type Subscription struct {
	ID        string
	ClientID  string
	Pose      CameraPose
	Radius    int
	Chunks    []worldmap.ChunkCoord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CameraPose describes the client's viewing position.
type CameraPose struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// SubscriptionRequest is sent by clients to begin receiving chunk data.
type SubscriptionRequest struct {
	Pose         CameraPose `json:"pose"`
	RadiusChunks int        `json:"radius_chunks"`
}

// SubscriptionPlan is the initial server response for a subscription.
type SubscriptionPlan struct {
	SubscriptionID string                `json:"subscription_id"`
	Chunks         []worldmap.ChunkCoord `json:"chunks"`
}

// ChunkDelta describes server-evaluated window changes after a pose
// update: only chunks entering the window need re-requesting.
type ChunkDelta struct {
	SubscriptionID string                `json:"subscription_id"`
	Added          []worldmap.ChunkCoord `json:"added"`
	Removed        []worldmap.ChunkCoord `json:"removed"`
	Current        []worldmap.ChunkCoord `json:"current"`
}

// NewManager builds a streaming manager instance.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*Subscription),
	}
}

func cameraChunk(pose CameraPose) worldmap.ChunkCoord {
	return worldmap.ChunkAt(worldmap.Vec3{X: pose.X, Z: pose.Z}, worldmap.StreamChunkSize)
}

// PlanSubscription validates the request and registers the subscription.
func (m *Manager) PlanSubscription(clientID string, req SubscriptionRequest) (*SubscriptionPlan, error) {
	if req.RadiusChunks <= 0 {
		return nil, fmt.Errorf("radius_chunks must be positive")
	}
	if req.RadiusChunks > maxViewRadiusChunks {
		return nil, fmt.Errorf("radius_chunks cannot exceed %d", maxViewRadiusChunks)
	}

	chunks := worldmap.ChunksInRadius(cameraChunk(req.Pose), req.RadiusChunks)
	sub := &Subscription{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Pose:      req.Pose,
		Radius:    req.RadiusChunks,
		Chunks:    chunks,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	m.mu.Lock()
	m.subscriptions[sub.ID] = sub
	m.mu.Unlock()

	return &SubscriptionPlan{SubscriptionID: sub.ID, Chunks: chunks}, nil
}

// UpdatePose recomputes the subscription window and returns the delta.
func (m *Manager) UpdatePose(clientID, subscriptionID string, pose CameraPose) (*ChunkDelta, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("subscription %s not found", subscriptionID)
	}
	if sub.ClientID != clientID {
		return nil, fmt.Errorf("subscription %s does not belong to the current client", subscriptionID)
	}

	next := worldmap.ChunksInRadius(cameraChunk(pose), sub.Radius)
	added, removed := diffChunkSets(sub.Chunks, next)

	sub.Chunks = next
	sub.Pose = pose
	sub.UpdatedAt = time.Now()

	return &ChunkDelta{
		SubscriptionID: subscriptionID,
		Added:          added,
		Removed:        removed,
		Current:        next,
	}, nil
}

// GetSubscription retrieves a subscription by ID.
func (m *Manager) GetSubscription(subscriptionID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("subscription %s not found", subscriptionID)
	}
	return sub, nil
}

// DropSubscription removes a subscription, typically on disconnect.
func (m *Manager) DropSubscription(subscriptionID string) {
	m.mu.Lock()
	delete(m.subscriptions, subscriptionID)
	m.mu.Unlock()
}

// DropClient removes every subscription belonging to a client.
func (m *Manager) DropClient(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subscriptions {
		if sub.ClientID == clientID {
			delete(m.subscriptions, id)
		}
	}
}

func diffChunkSets(previous, next []worldmap.ChunkCoord) (added, removed []worldmap.ChunkCoord) {
	prevSet := make(map[worldmap.ChunkCoord]struct{}, len(previous))
	nextSet := make(map[worldmap.ChunkCoord]struct{}, len(next))

	for _, c := range previous {
		prevSet[c] = struct{}{}
	}
	for _, c := range next {
		nextSet[c] = struct{}{}
		if _, exists := prevSet[c]; !exists {
			added = append(added, c)
		}
	}
	for _, c := range previous {
		if _, exists := nextSet[c]; !exists {
			removed = append(removed, c)
		}
	}
	return
}
