package rpc

import (
	"net"
	"net/rpc"

	"github.com/tourneyhub/roomserver/logger"
	"github.com/tourneyhub/roomserver/services"
)

// Server manages the RPC listener for the read-only admin surface.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes room introspection over net/rpc. All methods follow
// the net/rpc signature convention.
type AdminService struct {
	roomService *services.RoomService
}

func NewAdminService(rs *services.RoomService) *AdminService {
	return &AdminService{roomService: rs}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []services.RoomInfo
}

func (as *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = as.roomService.ListRooms()
	return nil
}

type RoomInfoArgs struct {
	RoomID string
}

type RoomInfoReply struct {
	Info services.RoomInfo
}

func (as *AdminService) GetRoomInfo(args *RoomInfoArgs, reply *RoomInfoReply) error {
	info, err := as.roomService.GetRoomInfo(args.RoomID)
	if err != nil {
		return err
	}
	reply.Info = info
	return nil
}

type StatsArgs struct{}

type StatsReply struct {
	Stats services.ServerStats
}

func (as *AdminService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.Stats = as.roomService.Stats()
	return nil
}
