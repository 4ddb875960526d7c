// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

func newHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(logging.New(logging.Config{Quiet: true}))

	router := gin.New()
	router.GET("/events/ws", hub.Handler())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/ws"
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, have %d", want, hub.Subscribers())
}

func TestHubDeliversEventsToSubscriber(t *testing.T) {
	hub, url := newHubServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.Publish(context.Background(), New(TypeCreated, "INC-1", nil))
	hub.Publish(context.Background(), New(TypeRouted, "INC-1", map[string]string{"team": "payments-team"}))

	var got Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeCreated, got.Type)
	assert.Equal(t, "INC-1", got.IncidentID)

	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeRouted, got.Type)
}

func TestHubFansOutToMultipleSubscribers(t *testing.T) {
	hub, url := newHubServer(t)

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	waitForSubscribers(t, hub, 2)

	hub.Publish(context.Background(), New(TypeEscalated, "INC-2", nil))

	for _, conn := range []*websocket.Conn{first, second} {
		var got Event
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, TypeEscalated, got.Type)
	}
}

func TestHubDropsDisconnectedSubscriber(t *testing.T) {
	hub, url := newHubServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)

	// Publishing with no subscribers is a no-op.
	hub.Publish(context.Background(), New(TypeClosed, "INC-3", nil))
}

func TestMultiFansOut(t *testing.T) {
	var calls []string
	record := func(name string) Dispatcher {
		return dispatcherFunc(func(_ context.Context, ev Event) {
			calls = append(calls, name+":"+ev.Type)
		})
	}
	m := Multi{record("a"), record("b")}
	m.Publish(context.Background(), New(TypeResolved, "INC-4", nil))

	assert.Equal(t, []string{"a:" + TypeResolved, "b:" + TypeResolved}, calls)
}

type dispatcherFunc func(context.Context, Event)

func (f dispatcherFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }
