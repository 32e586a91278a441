package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/minitel/chat-client/internal/bus"
	"github.com/minitel/chat-client/internal/chatlog"
	"github.com/minitel/chat-client/internal/messaging"
	"github.com/minitel/chat-client/internal/metrics"
	"github.com/minitel/chat-client/internal/platform"
	"github.com/minitel/chat-client/internal/presence"
	"github.com/minitel/chat-client/internal/protocol"
	"github.com/minitel/chat-client/internal/token"
	"github.com/minitel/chat-client/internal/typing"
	"github.com/minitel/chat-client/internal/ws"
)

func main() {
	config := ws.DefaultConfig()

	if v := os.Getenv("WS_URL"); v != "" {
		config.URL = v
	}
	if v := os.Getenv("WS_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("WS_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReconnectDelay = d
		}
	}
	if v := os.Getenv("WS_HEARTBEAT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HeartbeatInterval = d
		}
	}
	if v := os.Getenv("WS_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ConnectTimeout = d
		}
	}

	// --- Redis (credential store) ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	var tokens token.Store
	redisTokens, err := token.NewRedisStore(redisAddr)
	if err != nil {
		log.Printf("[token] redis unavailable (%v), using in-memory store", err)
		tokens = token.NewMemoryStore()
	} else {
		tokens = redisTokens
	}

	// --- NATS (event bridge, enabled by NATS_URL) ---
	natsURL := os.Getenv("NATS_URL")
	natsConfig := messaging.DefaultBridgeConfig()
	if natsURL != "" {
		natsConfig.URL = natsURL
	}

	metricsAddr := ":9100"
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		metricsAddr = v
	}

	log.Printf("chat client starting")
	log.Printf("  ws_url:             %s", config.URL)
	log.Printf("  reconnect_attempts: %d", config.MaxReconnectAttempts)
	log.Printf("  reconnect_delay:    %s", config.ReconnectDelay)
	log.Printf("  heartbeat:          %s", config.HeartbeatInterval)
	log.Printf("  connect_timeout:    %s", config.ConnectTimeout)
	log.Printf("  redis_addr:         %s", redisAddr)
	if natsURL != "" {
		log.Printf("  nats_url:           %s", natsConfig.URL)
	} else {
		log.Printf("  nats_url:           (bridge disabled)")
	}
	log.Printf("  metrics_addr:       %s", metricsAddr)

	events := bus.New()
	typingStore := typing.NewStore()
	presenceStore := presence.NewStore()

	recentMessages := chatlog.NewBuffer(chatlog.DefaultCapacity)
	recentMessages.Attach(events)

	var bridge *messaging.Bridge
	if natsURL != "" {
		bridge, err = messaging.NewBridge(natsConfig, events)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
	} else {
		log.Printf("[nats] bridge disabled (NATS_URL not set)")
	}

	manager := ws.NewManager(config, ws.GobwasDialer{}, events, typingStore, presenceStore, tokens, nil)

	manager.OnStateChange(func(state ws.ConnectionState) {
		if state.LastError != "" {
			log.Printf("[state] %s attempts=%d last_error=%q", state.Status, state.ReconnectAttempts, state.LastError)
		} else {
			log.Printf("[state] %s attempts=%d", state.Status, state.ReconnectAttempts)
		}
	})

	events.Subscribe(func(ev protocol.Event) {
		switch payload := ev.Data.(type) {
		case protocol.Message:
			log.Printf("[event] %s dialog=%s from=%s", ev.Type, payload.DialogID, payload.SenderName)
		case protocol.Notification:
			log.Printf("[event] notification: %s", payload.Title)
		default:
			log.Printf("[event] %s", ev.Type)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go typingStore.RunSweeper(ctx)

	// --- credentials ---
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 5*time.Second)
	authToken, err := tokens.Get(startupCtx, token.KeyAccessToken)
	if err != nil {
		log.Printf("[token] lookup failed: %v", err)
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		authToken = v
		if err := tokens.Set(startupCtx, token.KeyAccessToken, v); err != nil {
			log.Printf("[token] persist failed: %v", err)
		}
	}
	userID, _ := tokens.Get(startupCtx, token.KeyUserID)
	userName, _ := tokens.Get(startupCtx, token.KeyUserName)
	startupCancel()
	if v := os.Getenv("USER_ID"); v != "" {
		userID = v
	}
	if v := os.Getenv("USER_NAME"); v != "" {
		userName = v
	}
	manager.SetIdentity(userID, userName)

	if authToken == "" {
		log.Printf("[token] no auth token: set AUTH_TOKEN or store one under %s", token.KeyAccessToken)
	}

	// --- metrics endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	manager.Connect(authToken)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	platform.Shutdown(manager)
	manager.Close()
	recentMessages.Detach()
	if bridge != nil {
		bridge.Close()
	}
	cancel()
	if redisTokens != nil {
		if err := redisTokens.Close(); err != nil {
			log.Printf("token store close error: %v", err)
		}
	}
}
