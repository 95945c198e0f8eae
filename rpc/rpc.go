package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/round"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers the RoundAdmin service.
func NewServer(addr string, coordinator *round.Coordinator) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("RoundAdmin", NewRoundAdmin(coordinator)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start accepts connections until Stop.
func (s *Server) Start() {
	logger.Log.Infow("RPC server listening", "address", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorw("RPC server accept error", "error", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		_ = s.listener.Close()
	}
}

// RoundAdmin exposes read-only table state.
type RoundAdmin struct {
	coordinator *round.Coordinator
}

func NewRoundAdmin(coordinator *round.Coordinator) *RoundAdmin {
	return &RoundAdmin{coordinator: coordinator}
}

type SnapshotArgs struct {
	IncludePrevious bool
}

type SnapshotReply struct {
	State     string
	PlayerID  string
	Observers int
	RoundID   string
	Previous  *models.RoundRecord
}

// Snapshot follows the net/rpc method signature.
func (a *RoundAdmin) Snapshot(args *SnapshotArgs, reply *SnapshotReply) error {
	snap := a.coordinator.Snapshot()
	reply.State = snap.State.String()
	reply.PlayerID = snap.PlayerID
	reply.Observers = snap.Observers
	reply.RoundID = snap.RoundID
	if args.IncludePrevious {
		reply.Previous = snap.Previous
	}
	return nil
}
