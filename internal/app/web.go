// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dot_bridge/internal/config"
	"github.com/relabs-tech/dot_bridge/internal/live"
	"github.com/relabs-tech/dot_bridge/internal/sink"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network dashboard
	},
}

// RunWeb mirrors the latest readings from MQTT into an HTTP API, a
// websocket feed and the static pages under ./web.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	hub := live.NewHub()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, sink.Wildcard(cfg.TopicReadings), func(_ mqtt.Client, msg mqtt.Message) {
		var m sink.ReadingMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Warnf("web: MQTT payload unmarshal error: %v", err)
			return
		}
		hub.Update(m)
	})
	if err != nil {
		return err
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewRouter(hub, "web"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewRouter serves the hub's readings and the static files in staticDir.
func NewRouter(hub *live.Hub, staticDir string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/readings", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Latest())
	})
	api.GET("/readings/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id < 1 {
			c.String(http.StatusBadRequest, "invalid sensor id %q", c.Param("id"))
			return
		}
		m, ok := hub.Get(id)
		if !ok {
			c.String(http.StatusServiceUnavailable, "no data yet")
			return
		}
		c.JSON(http.StatusOK, m)
	})

	r.GET("/ws", func(c *gin.Context) {
		serveReadingsWS(hub, c.Writer, c.Request)
	})

	r.NoRoute(gin.WrapH(http.FileServer(http.Dir(staticDir))))
	return r
}

// serveReadingsWS pushes every new reading to the client until either side
// closes the connection.
func serveReadingsWS(hub *live.Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	readings, cancel := hub.Subscribe(64)
	defer cancel()

	// Reads only detect the close; clients have nothing to send.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case m, ok := <-readings:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(m); err != nil {
				log.Debugf("web: websocket write error: %v", err)
				return
			}
		}
	}
}
