package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tourneyhub/roomserver/broadcast"
	"github.com/tourneyhub/roomserver/config"
	"github.com/tourneyhub/roomserver/engine"
	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/monitor"
	"github.com/tourneyhub/roomserver/network"
	"github.com/tourneyhub/roomserver/protocol"
	"github.com/tourneyhub/roomserver/room"
	roomserver_rpc "github.com/tourneyhub/roomserver/rpc"
	"github.com/tourneyhub/roomserver/services"
	"github.com/tourneyhub/roomserver/session"
	"github.com/tourneyhub/roomserver/timer"
)

type GameServer struct {
	addr           string
	metricsAddr    string
	upgrader       websocket.Upgrader
	registry       *room.Registry
	sessionManager *session.Manager
	broadcaster    *broadcast.RoomBroadcaster
	router         *protocol.Router
	monitor        *monitor.Monitor
	rpcServer      *roomserver_rpc.Server
	scheduler      *timer.Manager
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, eng engine.GameEngine) *GameServer {
	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		sessionManager: session.NewManager(),
		monitor:        monitor.NewMonitor("roomserver"),
		scheduler:      timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.broadcaster.OnDelivery(s.monitor.AddBroadcasts)
	s.registry = room.NewRegistry(cfg.Room.MinPlayers, s.broadcaster)
	s.router = protocol.NewRouter(s.registry, s.sessionManager, eng)

	rpcServer, err := roomserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := roomserver_rpc.NewAdminService(
		services.NewRoomService(s.registry, s.sessionManager),
	)
	rpc.Register(adminService)

	// Room and session gauges are sampled rather than tracked per mutation.
	s.scheduler.Schedule(5*time.Second, 5*time.Second, func() {
		s.monitor.SetOpenRooms(s.registry.Count())
	})

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.metricsAddr)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Room server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.scheduler.Stop()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncConnectedClients()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.router.HandleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecConnectedClients()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			ev, err := wsConn.ReadEvent()
			if err != nil {
				return
			}
			s.monitor.IncEventsReceived()
			start := time.Now()
			s.router.HandleEvent(sess, ev)
			s.monitor.ObserveEventLatency(time.Since(start))
		}
	}
}
