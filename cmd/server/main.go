package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/vedran77/v3kn/internal/config"
	"github.com/vedran77/v3kn/internal/logging"
	"github.com/vedran77/v3kn/internal/presence"
	"github.com/vedran77/v3kn/internal/repository/jsonfile"
	"github.com/vedran77/v3kn/internal/service"
	"github.com/vedran77/v3kn/internal/transport/http/handlers"
	"github.com/vedran77/v3kn/internal/transport/http/middleware"
)

const indexHTML = `<!DOCTYPE html>
<html><head><title>v3kn</title></head>
<body><p>v3kn is running.</p></body></html>`

func main() {
	cfg := config.Load()
	opLog := logging.NewOperationalLogger(slog.LevelInfo)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		opLog.Error("create data dir", "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		opLog.Error("create log dir", "err", err)
		os.Exit(1)
	}

	domainLog, err := logging.NewDomain(filepath.Join(cfg.DataDir, "v3kn.log"), cfg.LogDir)
	if err != nil {
		opLog.Error("init domain log", "err", err)
		os.Exit(1)
	}

	userRepo := jsonfile.NewUserRepo(cfg.DataDir)
	friendRepo := jsonfile.NewFriendRepo(cfg.DataDir)
	eventRepo := jsonfile.NewEventRepo(cfg.DataDir)
	conversationRepo := jsonfile.NewConversationRepo(cfg.DataDir)
	storageRepo := jsonfile.NewStorageRepo(cfg.DataDir)

	authService := service.NewAuthService(userRepo, storageRepo, domainLog, cfg.QuotaBytesTotal)
	storageService := service.NewStorageService(storageRepo, authService, domainLog)
	trophyService := service.NewTrophyService(storageRepo)

	bus := presence.NewBus(eventRepo)
	registry := presence.NewRegistry()

	friendService := service.NewFriendService(friendRepo, bus, authService, trophyService, domainLog)
	presenceService := service.NewPresenceService(registry, bus, friendService, domainLog,
		cfg.PresenceTimeout, cfg.SweepIdleWait, cfg.EventRetention, cfg.StatusChangeRetention)
	friendService.SetPresence(presenceService)

	messageService := service.NewMessageService(conversationRepo, authService, cfg.LongPollBudget)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bus.Load(ctx); err != nil {
		opLog.Error("load event journal", "err", err)
		os.Exit(1)
	}

	count, err := authService.WarmTokenCache(ctx)
	if err != nil {
		opLog.Error("warm token cache", "err", err)
		os.Exit(1)
	}
	opLog.Info("token cache warmed", "count", count)

	accountHandler := handlers.NewAccountHandler(authService, storageService)
	storageHandler := handlers.NewStorageHandler(storageService, authService)
	friendsHandler := handlers.NewFriendsHandler(friendService, presenceService)
	messagesHandler := handlers.NewMessagesHandler(messageService)

	auth := middleware.Auth(authService)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /v3kn/check", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.Check)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/quota", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.Quota)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/create", accountHandler.Create)
	mux.HandleFunc("POST /v3kn/delete", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.Delete)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/login", accountHandler.Login)
	mux.HandleFunc("POST /v3kn/change_npid", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.ChangeNPID)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/change_password", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.ChangePassword)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/avatar", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.UploadAvatar)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/avatar", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(accountHandler.GetAvatar)).ServeHTTP(w, r) })

	mux.HandleFunc("GET /v3kn/save_info", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(storageHandler.SaveInfo)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/trophies_info", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(storageHandler.TrophiesInfo)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/download_file", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(storageHandler.DownloadFile)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/upload_file", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(storageHandler.UploadFile)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/check_trophy_conf_data", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(storageHandler.CheckTrophyConfData)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/upload_trophy_conf_data", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(storageHandler.UploadTrophyConfData)).ServeHTTP(w, r) })

	mux.HandleFunc("POST /v3kn/friends/add", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Add)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/accept", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Accept)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/reject", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Reject)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/cancel", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Cancel)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/remove", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Remove)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/block", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Block)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/unblock", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Unblock)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/friends/presence", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Presence)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/friends/list", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.List)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/friends/profile", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Profile)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/friends/search", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Search)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/friends/poll", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(friendsHandler.Poll)).ServeHTTP(w, r) })

	mux.HandleFunc("POST /v3kn/messages/create", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Create)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/messages/send", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Send)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/messages/delete", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Delete)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/messages/add_participant", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.AddParticipant)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/messages/leave", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Leave)).ServeHTTP(w, r) })
	mux.HandleFunc("POST /v3kn/messages/delete_conversation", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.DeleteConversation)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/messages/conversations", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Conversations)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/messages/read", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Read)).ServeHTTP(w, r) })
	mux.HandleFunc("GET /v3kn/messages/poll", func(w http.ResponseWriter, r *http.Request) { auth(http.HandlerFunc(messagesHandler.Poll)).ServeHTTP(w, r) })

	var handler http.Handler = mux
	handler = middleware.MaxBody(cfg.MaxBodyBytes)(handler)
	handler = middleware.DomainLog(domainLog)(handler)
	handler = middleware.Recover(opLog)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ConnState: func(conn net.Conn, state http.ConnState) {
			if state == http.StateNew {
				if tcp, ok := conn.(*net.TCPConn); ok {
					_ = tcp.SetNoDelay(true)
				}
			}
		},
	}

	listener, err := listenReusePort(cfg.ListenAddr)
	if err != nil {
		opLog.Error("listen", "err", err)
		os.Exit(1)
	}
	listener = newCapLimitListener(listener, cfg.KeepAliveMaxCnt)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		opLog.Info("listening", "addr", cfg.ListenAddr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		presenceService.RunSweeper(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		opLog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// listenReusePort binds with SO_REUSEPORT, matching the reference
// server's listener setup so multiple processes could share the port
// during a rolling restart.
func listenReusePort(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	conn, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// capLimitListener rejects new connections once maxConns are open
// simultaneously, the closest net.Listener-level equivalent of
// set_keep_alive_max_count's connection ceiling.
type capLimitListener struct {
	net.Listener
	max  int
	open chan struct{}
}

func newCapLimitListener(inner net.Listener, max int) *capLimitListener {
	return &capLimitListener{Listener: inner, max: max, open: make(chan struct{}, max)}
}

func (l *capLimitListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	select {
	case l.open <- struct{}{}:
		return &trackedConn{Conn: conn, release: func() { <-l.open }}, nil
	default:
		conn.Close()
		return l.Accept()
	}
}

type trackedConn struct {
	net.Conn
	release func()
	once    bool
}

func (c *trackedConn) Close() error {
	if !c.once {
		c.once = true
		c.release()
	}
	return c.Conn.Close()
}
