// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"saot-service/internal/pkg/fingerprint"
)

// Event is the wire format for server pushes.
type Event struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

const (
	EventForceLogout = "force_logout"
)

// Hub tracks connected devices and lets the auth service push
// server-initiated events to them. One client per device; a reconnect
// replaces the previous connection.
type Hub struct {
	clients    map[string]map[fingerprint.ID]*Client // accountID -> deviceID -> client
	register   chan *Client
	unregister chan *Client
	push       chan targetedEvent
	logger     *zap.Logger
}

type targetedEvent struct {
	accountID string
	deviceID  fingerprint.ID
	event     Event
	close     bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[fingerprint.ID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		push:       make(chan targetedEvent, 64),
		logger:     logger,
	}
}

// Run owns the client maps. All mutation happens on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, devices := range h.clients {
				for _, client := range devices {
					client.closeSend()
				}
			}
			return

		case client := <-h.register:
			devices, ok := h.clients[client.accountID]
			if !ok {
				devices = make(map[fingerprint.ID]*Client)
				h.clients[client.accountID] = devices
			}
			if prev, ok := devices[client.deviceID]; ok {
				prev.closeSend()
			}
			devices[client.deviceID] = client
			h.logger.Debug("websocket client connected",
				zap.String("account_id", client.accountID),
				zap.String("device_id", string(client.deviceID)),
			)

		case client := <-h.unregister:
			if devices, ok := h.clients[client.accountID]; ok {
				if current, ok := devices[client.deviceID]; ok && current == client {
					delete(devices, client.deviceID)
					client.closeSend()
					if len(devices) == 0 {
						delete(h.clients, client.accountID)
					}
				}
			}

		case ev := <-h.push:
			devices, ok := h.clients[ev.accountID]
			if !ok {
				continue
			}
			client, ok := devices[ev.deviceID]
			if !ok {
				continue
			}
			data, err := json.Marshal(ev.event)
			if err != nil {
				h.logger.Error("failed to encode websocket event", zap.Error(err))
				continue
			}
			client.trySend(data)
			if ev.close {
				delete(devices, ev.deviceID)
				client.closeSend()
				if len(devices) == 0 {
					delete(h.clients, ev.accountID)
				}
			}
		}
	}
}

// ForceLogout pushes a logout event to the device and drops its connection.
// Devices that are not connected simply miss the push; their next request
// fails session validation anyway.
func (h *Hub) ForceLogout(accountID string, deviceID fingerprint.ID, reason string) {
	select {
	case h.push <- targetedEvent{
		accountID: accountID,
		deviceID:  deviceID,
		event:     Event{Type: EventForceLogout, DeviceID: string(deviceID), Reason: reason},
		close:     true,
	}:
	default:
		h.logger.Warn("websocket push queue full, dropping force-logout",
			zap.String("account_id", accountID),
			zap.String("device_id", string(deviceID)),
		)
	}
}
